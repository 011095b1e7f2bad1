// Package v1 contains the repository.appmodel.ocm.software/v1 document: a
// list of artifacts with their metadata and optional extension descriptor.
package v1

import (
	"fmt"

	"github.com/invopop/jsonschema"

	"ocm.software/open-component-model/appmodel/runtime"
)

const (
	RepositoryType   = "repository.appmodel.ocm.software"
	RepositoryTypeV1 = "v1"
)

var Type = runtime.NewType(RepositoryType, RepositoryTypeV1)

// Repository is a file based artifact repository.
type Repository struct {
	Type      runtime.Type `json:"type"`
	Artifacts []Artifact   `json:"artifacts"`
}

func (r *Repository) GetType() runtime.Type {
	return r.Type
}

// JSONSchemaExtend pins the type field to the only supported type.
func (Repository) JSONSchemaExtend(s *jsonschema.Schema) {
	if typ, ok := s.Properties.Get("type"); ok {
		typ.Enum = []any{Type.String()}
	}
}

// Artifact is a single artifact version.
type Artifact struct {
	// Coordinate in the form group:artifact[:classifier:type|:type]:version.
	Coordinate string `json:"coordinate" jsonschema:"minLength=5"`
	Packaging  string `json:"packaging,omitempty"`
	// Properties are available as ${name} in dependency versions.
	Properties          map[string]string `json:"properties,omitempty"`
	Dependencies        []Dependency      `json:"dependencies,omitempty"`
	ManagedDependencies []Dependency      `json:"managedDependencies,omitempty"`
	// Extension marks the artifact as runtime artifact of an extension.
	Extension *Extension `json:"extension,omitempty"`
}

type Dependency struct {
	Coordinate string `json:"coordinate" jsonschema:"minLength=5"`
	Scope      string `json:"scope,omitempty" jsonschema:"enum=compile,enum=runtime,enum=provided,enum=test"`
	Optional   bool   `json:"optional,omitempty"`
	// Exclusions in the form group:artifact, either part may be a glob pattern such as *.
	Exclusions []string `json:"exclusions,omitempty"`
}

type Extension struct {
	// DeploymentArtifact may omit the version to use the one of the runtime artifact.
	DeploymentArtifact      string   `json:"deploymentArtifact" jsonschema:"minLength=3"`
	DependencyCondition     []string `json:"dependencyCondition,omitempty"`
	ConditionalDependencies []string `json:"conditionalDependencies,omitempty"`
	ProvidesCapabilities    []string `json:"providesCapabilities,omitempty"`
	RequiresCapabilities    []string `json:"requiresCapabilities,omitempty"`
}

// JSONSchema returns the JSON schema of the repository document.
func JSONSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(&Repository{})
	schema.ID = jsonschema.ID(fmt.Sprintf("https://ocm.software/schemas/appmodel/%s.schema.json", Type.GetName()))
	schema.Title = Type.String()
	return schema.MarshalJSON()
}
