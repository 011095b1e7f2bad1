// Package artifact contains the identity model for dependency nodes:
// coordinates, version-less keys, scopes, exclusions and dependency edges.
package artifact

import (
	"cmp"
	"fmt"
	"strings"
)

// DefaultType is the packaging type assumed when a coordinate does not name one.
const DefaultType = "jar"

// Key identifies a logical dependency independent of its version.
// Two keys that only differ in classifier or type are distinct artifacts.
type Key struct {
	GroupID    string `json:"groupId"`
	ArtifactID string `json:"artifactId"`
	Classifier string `json:"classifier,omitempty"`
	Type       string `json:"type,omitempty"`
}

// NewKey returns the key of the default-typed, unclassified artifact group:artifact.
func NewKey(groupID, artifactID string) Key {
	return Key{GroupID: groupID, ArtifactID: artifactID, Type: DefaultType}
}

// Normalize fills in the default type.
func (k Key) Normalize() Key {
	if k.Type == "" {
		k.Type = DefaultType
	}
	return k
}

// WithVersion returns the coordinate of this key at the given version.
func (k Key) WithVersion(version string) Coordinate {
	return Coordinate{
		GroupID:    k.GroupID,
		ArtifactID: k.ArtifactID,
		Classifier: k.Classifier,
		Type:       k.Type,
		Version:    version,
	}
}

func (k Key) String() string {
	k = k.Normalize()
	if k.Classifier == "" && k.Type == DefaultType {
		return k.GroupID + ":" + k.ArtifactID
	}
	return strings.Join([]string{k.GroupID, k.ArtifactID, k.Classifier, k.Type}, ":")
}

// Compare orders keys by group, artifact, classifier and type.
func (k Key) Compare(other Key) int {
	k, other = k.Normalize(), other.Normalize()
	return cmp.Or(
		cmp.Compare(k.GroupID, other.GroupID),
		cmp.Compare(k.ArtifactID, other.ArtifactID),
		cmp.Compare(k.Classifier, other.Classifier),
		cmp.Compare(k.Type, other.Type),
	)
}

// ParseKey parses group:artifact or group:artifact:classifier:type.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	var k Key
	switch len(parts) {
	case 2:
		k = Key{GroupID: parts[0], ArtifactID: parts[1]}
	case 4:
		k = Key{GroupID: parts[0], ArtifactID: parts[1], Classifier: parts[2], Type: parts[3]}
	default:
		return Key{}, fmt.Errorf("invalid artifact key %q, expected group:artifact[:classifier:type]", s)
	}
	if k.GroupID == "" || k.ArtifactID == "" {
		return Key{}, fmt.Errorf("invalid artifact key %q, group and artifact are required", s)
	}
	return k.Normalize(), nil
}

// MustParseKey is ParseKey for static input.
func MustParseKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// Coordinate is a fully qualified artifact reference.
type Coordinate struct {
	GroupID    string `json:"groupId"`
	ArtifactID string `json:"artifactId"`
	Classifier string `json:"classifier,omitempty"`
	Type       string `json:"type,omitempty"`
	Version    string `json:"version,omitempty"`
}

// Key drops the version and normalizes the type.
func (c Coordinate) Key() Key {
	return Key{
		GroupID:    c.GroupID,
		ArtifactID: c.ArtifactID,
		Classifier: c.Classifier,
		Type:       c.Type,
	}.Normalize()
}

func (c Coordinate) WithVersion(version string) Coordinate {
	c.Version = version
	return c
}

// IsZero reports whether the coordinate is unset.
func (c Coordinate) IsZero() bool {
	return c == Coordinate{}
}

// String renders group:artifact:version for default-typed artifacts and
// group:artifact:classifier:type:version otherwise.
func (c Coordinate) String() string {
	k := c.Key()
	if k.Classifier == "" && k.Type == DefaultType {
		return k.GroupID + ":" + k.ArtifactID + ":" + c.Version
	}
	return strings.Join([]string{k.GroupID, k.ArtifactID, k.Classifier, k.Type, c.Version}, ":")
}

// ParseCoordinate accepts group:artifact:version, group:artifact:type:version
// and group:artifact:classifier:type:version.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	var c Coordinate
	switch len(parts) {
	case 3:
		c = Coordinate{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}
	case 4:
		c = Coordinate{GroupID: parts[0], ArtifactID: parts[1], Type: parts[2], Version: parts[3]}
	case 5:
		c = Coordinate{GroupID: parts[0], ArtifactID: parts[1], Classifier: parts[2], Type: parts[3], Version: parts[4]}
	default:
		return Coordinate{}, fmt.Errorf("invalid artifact coordinate %q", s)
	}
	if c.GroupID == "" || c.ArtifactID == "" {
		return Coordinate{}, fmt.Errorf("invalid artifact coordinate %q, group and artifact are required", s)
	}
	if c.Type == "" {
		c.Type = DefaultType
	}
	return c, nil
}

// MustParseCoordinate is ParseCoordinate for static input.
func MustParseCoordinate(s string) Coordinate {
	c, err := ParseCoordinate(s)
	if err != nil {
		panic(err)
	}
	return c
}
