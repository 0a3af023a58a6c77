// Package catalog holds the frame metadata records produced from a frame
// asset bundle and the builder that produces them.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/menta2k/deviceframe/pkg/types"
)

// Catalog is an immutable, relPath-ordered collection of frame records.
type Catalog struct {
	records []types.FrameRecord
	index   map[string]int
}

// New builds a catalog from records. The slice is copied and sorted by relPath.
func New(records []types.FrameRecord) *Catalog {
	c := &Catalog{
		records: make([]types.FrameRecord, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for i, r := range records {
		c.records[i] = cloneRecord(r)
	}
	sort.SliceStable(c.records, func(i, j int) bool {
		return c.records[i].RelPath < c.records[j].RelPath
	})
	for i, r := range c.records {
		c.index[r.RelPath] = i
	}
	return c
}

// Parse reads a JSON array of frame records
func Parse(r io.Reader) (*Catalog, error) {
	var records []types.FrameRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to parse frame catalog: %w", err)
	}
	return New(records), nil
}

// Load reads a catalog from a frames.json file
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame catalog: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// WriteJSON writes the catalog as an indented JSON array
func (c *Catalog) WriteJSON(w io.Writer) error {
	data, err := c.JSON()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// JSON encodes the records as an array indented with four spaces
func (c *Catalog) JSON() ([]byte, error) {
	records := c.records
	if records == nil {
		records = []types.FrameRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("failed to marshal frame catalog: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Save writes the catalog to path, creating parent directories
func (c *Catalog) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	data, err := c.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

// Len returns the number of records
func (c *Catalog) Len() int {
	return len(c.records)
}

// Records returns a copy of all records in relPath order
func (c *Catalog) Records() []types.FrameRecord {
	out := make([]types.FrameRecord, len(c.records))
	for i, r := range c.records {
		out[i] = cloneRecord(r)
	}
	return out
}

// Lookup returns the record with the given relPath
func (c *Catalog) Lookup(relPath string) (types.FrameRecord, bool) {
	i, ok := c.index[relPath]
	if !ok {
		return types.FrameRecord{}, false
	}
	return cloneRecord(c.records[i]), true
}

// Devices returns the sorted unique device names
func (c *Catalog) Devices() []string {
	seen := make(map[string]bool)
	var devices []string
	for _, r := range c.records {
		if !seen[r.Device] {
			seen[r.Device] = true
			devices = append(devices, r.Device)
		}
	}
	sort.Strings(devices)
	return devices
}

// ByDevice returns every frame of a device, matched case-insensitively
func (c *Catalog) ByDevice(device string) []types.FrameRecord {
	var out []types.FrameRecord
	for _, r := range c.records {
		if strings.EqualFold(r.Device, device) {
			out = append(out, cloneRecord(r))
		}
	}
	return out
}

// Search returns the records matching every term of query
func (c *Catalog) Search(query string) []types.FrameRecord {
	var out []types.FrameRecord
	for _, r := range c.records {
		if r.Matches(query) {
			out = append(out, cloneRecord(r))
		}
	}
	return out
}

func cloneRecord(r types.FrameRecord) types.FrameRecord {
	if r.Tags != nil {
		r.Tags = append([]string(nil), r.Tags...)
	}
	if r.PixelRatio != nil {
		v := *r.PixelRatio
		r.PixelRatio = &v
	}
	return r
}
