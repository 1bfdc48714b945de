package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidKeywordsFile = errors.New("invalid keywords file")

// Keywords is the on-disk shape of a vocabulary override:
//
//	search: [search, find, list]
//	action: [create, delete]
type Keywords struct {
	Search []string `yaml:"search"`
	Action []string `yaml:"action"`
}

// LoadKeywords reads and validates a keywords file.
func LoadKeywords(path string) (Keywords, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Keywords{}, fmt.Errorf("read keywords file %s: %w", path, err)
	}
	return ParseKeywords(raw)
}

// ParseKeywords decodes a keywords document. Unknown keys and empty lists are rejected.
func ParseKeywords(raw []byte) (Keywords, error) {
	var k Keywords
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&k); err != nil {
		if errors.Is(err, io.EOF) {
			return Keywords{}, fmt.Errorf("%w: document is empty", ErrInvalidKeywordsFile)
		}
		return Keywords{}, fmt.Errorf("%w: %w", ErrInvalidKeywordsFile, err)
	}
	if len(k.Search) == 0 {
		return Keywords{}, fmt.Errorf("%w: search list is empty", ErrInvalidKeywordsFile)
	}
	if len(k.Action) == 0 {
		return Keywords{}, fmt.Errorf("%w: action list is empty", ErrInvalidKeywordsFile)
	}
	return k, nil
}

// WriteKeywords stores k at path in the format LoadKeywords reads.
func WriteKeywords(path string, k Keywords) error {
	raw, err := yaml.Marshal(k)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
