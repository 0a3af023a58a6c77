package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	switch GetFileExtension(filename) {
	case "jpg", "jpeg", "png", "bmp", "webp":
		return true
	}
	return false
}

// IsURL reports whether source is an http or https URL
func IsURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ListFiles recursively lists files under dir whose extension matches one
// of exts (case-insensitive, with the dot).
func ListFiles(dir string, exts ...string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range exts {
			if ext == strings.ToLower(want) {
				files = append(files, path)
				break
			}
		}
		return nil
	})

	return files, err
}

// ExpandInputs resolves CLI inputs into image files and URLs. Non-URL
// inputs are treated as glob patterns; a pattern matching nothing is kept
// as-is so the caller can report it. Patterns use filepath.Match syntax, so
// "**" matches a single path element like "*".
func ExpandInputs(inputs []string) (files, urls []string, err error) {
	for _, in := range inputs {
		if IsURL(in) {
			urls = append(urls, in)
			continue
		}
		matches, err := filepath.Glob(in)
		if err != nil {
			return nil, nil, fmt.Errorf("bad pattern %q: %w", in, err)
		}
		if len(matches) == 0 {
			files = append(files, in)
			continue
		}
		for _, m := range matches {
			if IsImageFile(m) {
				files = append(files, m)
			}
		}
	}
	return files, urls, nil
}

// FileExists checks if a file exists, is not a directory and is non-empty
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

// SanitizeFilename removes or replaces invalid characters in filenames
func SanitizeFilename(filename string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := filename

	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	// Remove leading/trailing spaces and dots
	result = strings.Trim(result, " .")

	return result
}

// GenerateOutputFilename builds "<source stem>-<frame name>.<ext>" inside outputDir
func GenerateOutputFilename(source, frameName, outputDir, ext string) string {
	base := filepath.Base(source)
	if IsURL(source) {
		base = strings.TrimRight(source, "/")
		if i := strings.Index(base, "://"); i >= 0 {
			base = base[i+3:]
		}
		base = strings.ReplaceAll(base, "/", "_")
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if IsURL(source) && !IsImageFile(base) {
		stem = base
	}
	if stem == "" {
		stem = "Frame"
	}

	name := SanitizeFilename(fmt.Sprintf("%s-%s", stem, frameName))
	return filepath.Join(outputDir, name+"."+ext)
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
