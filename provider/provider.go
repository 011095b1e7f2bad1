// Package provider defines the collaborators that feed the resolver with
// artifact metadata and extension descriptors.
package provider

import (
	"context"
	"errors"

	"ocm.software/open-component-model/appmodel/artifact"
)

// ErrNotFound is returned by providers for coordinates they do not know.
var ErrNotFound = errors.New("artifact not found")

// Metadata is the parsed descriptor of a single artifact version.
type Metadata struct {
	Coordinate artifact.Coordinate `json:"coordinate"`
	// Packaging is informational, e.g. jar or pom.
	Packaging string `json:"packaging,omitempty"`
	// Properties are used to interpolate ${name} placeholders in the versions
	// of Dependencies and ManagedDependencies.
	Properties map[string]string `json:"properties,omitempty"`
	// Dependencies are the direct dependencies in declaration order.
	Dependencies []artifact.Dependency `json:"dependencies,omitempty"`
	// ManagedDependencies pin versions for the subtree below this artifact.
	ManagedDependencies []artifact.Dependency `json:"managedDependencies,omitempty"`
}

// MetadataProvider resolves artifact metadata. Implementations must answer
// deterministically for a coordinate during one resolution.
type MetadataProvider interface {
	Resolve(ctx context.Context, coordinate artifact.Coordinate) (*Metadata, error)
	// Versions lists the known versions of an artifact. It is only consulted
	// for version ranges.
	Versions(ctx context.Context, key artifact.Key) ([]string, error)
}

// ExtensionDescriptor marks a runtime artifact as an extension.
type ExtensionDescriptor struct {
	// DeploymentArtifact is the build time counterpart of the runtime
	// artifact. An empty version means the runtime artifact version.
	DeploymentArtifact artifact.Coordinate `json:"deploymentArtifact"`
	// DependencyCondition lists artifacts that must all be present on the
	// runtime classpath before the extension is activated.
	DependencyCondition []artifact.Key `json:"dependencyCondition,omitempty"`
	// ConditionalDependencies are extensions activated together with this one
	// once their own condition is met.
	ConditionalDependencies []artifact.Coordinate `json:"conditionalDependencies,omitempty"`
	// ProvidesCapabilities and RequiresCapabilities describe capability contracts
	// between extensions.
	ProvidesCapabilities []string `json:"providesCapabilities,omitempty"`
	RequiresCapabilities []string `json:"requiresCapabilities,omitempty"`
}

// ExtensionDescriptorProvider describes runtime artifacts. A nil descriptor
// with a nil error means the artifact is a plain library.
type ExtensionDescriptorProvider interface {
	Describe(ctx context.Context, runtimeArtifact artifact.Coordinate) (*ExtensionDescriptor, error)
}

// Provider combines both lookups. All implementations in this module satisfy it.
type Provider interface {
	MetadataProvider
	ExtensionDescriptorProvider
}
