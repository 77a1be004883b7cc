// Package codec reads and writes workflow graphs as JSON or YAML text.
package codec

import (
	"path/filepath"
	"strings"

	"github.com/rendis/certflow/pkg/schema"
)

// Format is a supported text encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", schema.NewErrorf(schema.ErrCodeUnsupportedFormat, "unsupported format %q", s).
			WithDetails(map[string]any{"format": s})
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", schema.NewErrorf(schema.ErrCodeUnsupportedFormat, "cannot infer format of %q", path).
			WithDetails(map[string]any{"path": path})
	}
	return ParseFormat(ext)
}

func (f Format) String() string { return string(f) }
