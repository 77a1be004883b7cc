package codec

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/certflow/pkg/schema"
)

// Deserialize parses content into a Graph. Blank content, or a document that
// decodes to null, yields a nil graph and no error. Parse failures and roots
// that are neither a mapping nor a sequence are INVALID_CONTENT.
func Deserialize(content []byte, format Format) (*schema.Graph, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}

	raw, err := decode(content, format)
	if err != nil {
		return nil, err
	}

	switch raw.(type) {
	case nil:
		return nil, nil
	case map[string]any, map[any]any, []any:
		return schema.GraphFromRaw(raw), nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeInvalidContent,
			"%s document must be an object or an array", format).
			WithDetails(map[string]any{"format": string(format)})
	}
}

func decode(content []byte, format Format) (any, error) {
	var raw any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, invalidContent(format, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, invalidContent(format, err)
		}
	default:
		return nil, unsupported(format)
	}
	return raw, nil
}

// Serialize writes g in the given format. A nil graph is written as an empty node list.
func Serialize(g *schema.Graph, format Format) ([]byte, error) {
	if g == nil {
		g = &schema.Graph{}
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeInvalidArgument, "failed to encode graph as json").WithCause(err)
		}
		return append(data, '\n'), nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(g); err != nil {
			return nil, schema.NewError(schema.ErrCodeInvalidArgument, "failed to encode graph as yaml").WithCause(err)
		}
		if err := enc.Close(); err != nil {
			return nil, schema.NewError(schema.ErrCodeInvalidArgument, "failed to encode graph as yaml").WithCause(err)
		}
		return buf.Bytes(), nil

	default:
		return nil, unsupported(format)
	}
}

// Convert re-encodes content from one format to another. Blank input converts
// to an empty node list.
func Convert(content []byte, from, to Format) ([]byte, error) {
	g, err := Deserialize(content, from)
	if err != nil {
		return nil, err
	}
	return Serialize(g, to)
}

func invalidContent(format Format, err error) *schema.CertflowError {
	msg := strings.TrimSpace(err.Error())
	return schema.NewErrorf(schema.ErrCodeInvalidContent, "invalid %s content: %s", format, msg).
		WithDetails(map[string]any{"format": string(format)}).
		WithCause(err)
}

func unsupported(format Format) *schema.CertflowError {
	return schema.NewErrorf(schema.ErrCodeUnsupportedFormat, "unsupported format %q", string(format)).
		WithDetails(map[string]any{"format": string(format)})
}
