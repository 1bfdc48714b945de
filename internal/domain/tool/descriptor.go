package tool

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDescriptor is returned when a tool descriptor cannot be classified.
var ErrMalformedDescriptor = errors.New("malformed tool descriptor")

// Describer is anything that can be classified as a tool: MCP tools, A2A skills,
// persisted definitions and plain descriptors all satisfy it through small adapters.
type Describer interface {
	ToolName() string
	ToolDescription() string
}

// Descriptor is the minimal name + free text description of a tool exposed to an agent.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (d Descriptor) ToolName() string        { return d.Name }
func (d Descriptor) ToolDescription() string { return d.Description }

// MalformedDescriptorError reports which element of a tool list failed validation.
type MalformedDescriptorError struct {
	Index  int
	Name   string
	Reason string
}

func (e *MalformedDescriptorError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s at index %d (%q): %s", ErrMalformedDescriptor, e.Index, e.Name, e.Reason)
	}
	return fmt.Sprintf("%s at index %d: %s", ErrMalformedDescriptor, e.Index, e.Reason)
}

func (e *MalformedDescriptorError) Unwrap() error { return ErrMalformedDescriptor }

// ValidateDescriptors checks every element eagerly and returns the first failure.
func ValidateDescriptors[T Describer](tools []T) error {
	for i, t := range tools {
		if err := validateDescriptor(i, t); err != nil {
			return err
		}
	}
	return nil
}

func validateDescriptor(index int, d Describer) error {
	if isNilDescriber(d) {
		return &MalformedDescriptorError{Index: index, Reason: "descriptor is nil"}
	}
	if strings.TrimSpace(d.ToolName()) == "" {
		return &MalformedDescriptorError{Index: index, Reason: "name is required"}
	}
	return nil
}

// isNilDescriber catches typed nil pointers hidden behind the interface.
func isNilDescriber(d Describer) bool {
	if d == nil {
		return true
	}
	switch v := d.(type) {
	case *Descriptor:
		return v == nil
	case *ToolDefinition:
		return v == nil
	}
	return false
}

// ToDescriptors copies any describer slice into plain descriptors.
func ToDescriptors[T Describer](tools []T) []Descriptor {
	out := make([]Descriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, Descriptor{Name: t.ToolName(), Description: t.ToolDescription()})
	}
	return out
}
