// Package model contains the resolved application model: the runtime and
// deployment classpaths of an application together with the extensions that
// were activated while resolving them.
package model

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/opencontainers/go-digest"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/dag"
)

// Vertex attributes set on the graphs of an ApplicationModel.
const (
	AttributeCoordinate = "appmodel/coordinate"
	AttributeFlags      = "appmodel/flags"
	AttributeScope      = "appmodel/scope"
)

// DirectDependency is a dependency as declared by its parent, with the
// version rewritten to the one selected for the application.
type DirectDependency struct {
	Coordinate artifact.Coordinate `json:"coordinate"`
	Scope      artifact.Scope      `json:"scope"`
	Flags      Flags               `json:"flags"`
}

// ResolvedDependency is one artifact of the application.
type ResolvedDependency struct {
	Coordinate   artifact.Coordinate `json:"coordinate"`
	Scope        artifact.Scope      `json:"scope"`
	Flags        Flags               `json:"flags"`
	Dependencies []DirectDependency  `json:"dependencies,omitempty"`
}

func (d ResolvedDependency) Key() artifact.Key {
	return d.Coordinate.Key()
}

// ActivationKind describes why an extension became part of the application.
type ActivationKind string

const (
	// ActivationDirect is used for extensions declared by the application.
	ActivationDirect ActivationKind = "direct"
	// ActivationTransitive is used for extensions reached through other dependencies.
	ActivationTransitive ActivationKind = "transitive"
	// ActivationConditional is used for extensions activated as conditional
	// dependency of another extension.
	ActivationConditional ActivationKind = "conditional"
)

type Extension struct {
	Runtime    artifact.Coordinate `json:"runtime"`
	Deployment artifact.Coordinate `json:"deployment,omitzero"`
	Activation ActivationKind      `json:"activation"`
	// ActivatedBy is the extension declaring the conditional dependency.
	ActivatedBy *artifact.Key `json:"activatedBy,omitempty"`
	// Round is the activation round, starting with 1.
	Round     int            `json:"round"`
	Condition []artifact.Key `json:"condition,omitempty"`
}

// CapabilityContract lists the capabilities an extension provides and requires.
type CapabilityContract struct {
	Extension artifact.Key `json:"extension"`
	Provides  []string     `json:"provides,omitempty"`
	Requires  []string     `json:"requires,omitempty"`
}

// Graph names the classpath a conflict was mediated on.
type Graph string

const (
	GraphRuntime    Graph = "runtime"
	GraphDeployment Graph = "deployment"
)

// ConflictReason names the rule that selected a version.
type ConflictReason string

const (
	ReasonOverride      ConflictReason = "override"
	ReasonRuntimePinned ConflictReason = "runtime-selection"
	ReasonManaged       ConflictReason = "managed"
	ReasonNearest       ConflictReason = "nearest"
	ReasonFirstDeclared ConflictReason = "first-declared"
)

type VersionRequest struct {
	Version string              `json:"version"`
	Depth   int                 `json:"depth"`
	From    artifact.Coordinate `json:"from"`
}

// Conflict documents a dependency that was requested in more than one version.
type Conflict struct {
	Key       artifact.Key     `json:"key"`
	Graph     Graph            `json:"graph"`
	Selected  string           `json:"selected"`
	Reason    ConflictReason   `json:"reason"`
	Requested []VersionRequest `json:"requested"`
}

// ApplicationModel is the immutable outcome of one resolution.
type ApplicationModel struct {
	Application ResolvedDependency `json:"application"`
	Mode        string             `json:"mode"`
	// Dependencies holds one entry per artifact key: runtime classpath first in
	// resolution order, then deployment only artifacts, then compile only ones.
	Dependencies []ResolvedDependency `json:"dependencies"`
	Extensions   []Extension          `json:"extensions,omitempty"`
	Capabilities []CapabilityContract `json:"capabilities,omitempty"`
	Conflicts    []Conflict           `json:"conflicts,omitempty"`

	RuntimeGraph    *dag.DirectedAcyclicGraph[string] `json:"-"`
	DeploymentGraph *dag.DirectedAcyclicGraph[string] `json:"-"`
}

// Filter returns the dependencies that have all of the given flags set.
func (m *ApplicationModel) Filter(flags Flags) []ResolvedDependency {
	var out []ResolvedDependency
	for _, d := range m.Dependencies {
		if d.Flags.Has(flags) {
			out = append(out, d)
		}
	}
	return out
}

// Runtime returns the runtime classpath.
func (m *ApplicationModel) Runtime() []ResolvedDependency {
	return m.Filter(FlagRuntimeCP)
}

// Deployment returns the deployment classpath. It is empty for runtime only models.
func (m *ApplicationModel) Deployment() []ResolvedDependency {
	return m.Filter(FlagDeploymentCP)
}

// CompileOnly returns provided dependencies of the application.
func (m *ApplicationModel) CompileOnly() []ResolvedDependency {
	return m.Filter(FlagCompileOnly)
}

// Dependency looks up the entry of an artifact key.
func (m *ApplicationModel) Dependency(key artifact.Key) (ResolvedDependency, bool) {
	key = key.Normalize()
	i := slices.IndexFunc(m.Dependencies, func(d ResolvedDependency) bool {
		return d.Key() == key
	})
	if i < 0 {
		return ResolvedDependency{}, false
	}
	return m.Dependencies[i], true
}

// Extension looks up an activated extension by its runtime artifact key.
func (m *ApplicationModel) Extension(key artifact.Key) (Extension, bool) {
	key = key.Normalize()
	i := slices.IndexFunc(m.Extensions, func(e Extension) bool {
		return e.Runtime.Key() == key
	})
	if i < 0 {
		return Extension{}, false
	}
	return m.Extensions[i], true
}

// Digest returns a digest over the canonical JSON form of the model.
// Two resolutions of the same input have the same digest.
func (m *ApplicationModel) Digest() (digest.Digest, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("could not marshal application model: %w", err)
	}
	canonical, err := jsoncanonicalizer.Transform(data)
	if err != nil {
		return "", fmt.Errorf("could not canonicalize application model: %w", err)
	}
	return digest.FromBytes(canonical), nil
}
