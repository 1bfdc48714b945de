package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// descriptorDocumentSchema accepts either a bare array of descriptors or an object
// with a "tools" array, the shape MCP tools/list results use.
const descriptorDocumentSchema = `{
  "definitions": {
    "descriptor": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "pattern": "\\S"},
        "description": {"type": "string"}
      }
    },
    "descriptors": {
      "type": "array",
      "items": {"$ref": "#/definitions/descriptor"}
    }
  },
  "oneOf": [
    {"$ref": "#/definitions/descriptors"},
    {
      "type": "object",
      "required": ["tools"],
      "properties": {"tools": {"$ref": "#/definitions/descriptors"}}
    }
  ]
}`

var loadDescriptorSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(descriptorDocumentSchema))
})

// ParseDescriptors decodes a JSON descriptor document. Documents that do not match
// the descriptor schema fail with ErrMalformedDescriptor.
func ParseDescriptors(raw []byte) ([]Descriptor, error) {
	schema, err := loadDescriptorSchema()
	if err != nil {
		return nil, fmt.Errorf("load descriptor schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDescriptor, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedDescriptor, strings.Join(msgs, "; "))
	}

	var tools []Descriptor
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(raw, &tools)
	} else {
		var doc struct {
			Tools []Descriptor `json:"tools"`
		}
		err = json.Unmarshal(raw, &doc)
		tools = doc.Tools
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDescriptor, err)
	}
	if tools == nil {
		tools = []Descriptor{}
	}
	if err := ValidateDescriptors(tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// FileSource reads descriptors from a JSON document on disk.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(ctx context.Context) ([]Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read descriptors %s: %w", s.Path, err)
	}
	return ParseDescriptors(raw)
}
