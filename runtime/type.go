// Package runtime provides versioned document types and a registry that
// decodes YAML or JSON documents into them based on their type field.
package runtime

import (
	"fmt"
	"strings"
)

// Typed is any object that is defined by a type that is versioned.
type Typed interface {
	// GetType returns the objects type and version
	GetType() Type
}

// Type is a name/version pair, e.g. repository.appmodel.ocm.software/v1.
type Type string

func NewType(name, version string) Type {
	return Type(name + "/" + version)
}

func ParseType(typ string) (Type, error) {
	name, version, ok := strings.Cut(typ, "/")
	if !ok || strings.Contains(version, "/") {
		return "", fmt.Errorf("invalid type %q, not exactly type+version", typ)
	}
	if name == "" {
		return "", fmt.Errorf("invalid type %q, missing type", typ)
	}
	if version == "" {
		return "", fmt.Errorf("invalid type %q, missing version", typ)
	}
	return NewType(name, version), nil
}

func (t Type) String() string {
	return string(t)
}

func (t Type) GetType() Type {
	return t
}

func (t Type) IsEmpty() bool {
	return t == ""
}

func (t Type) GetName() string {
	name, _, _ := strings.Cut(string(t), "/")
	return name
}

func (t Type) GetVersion() string {
	_, version, _ := strings.Cut(string(t), "/")
	return version
}
