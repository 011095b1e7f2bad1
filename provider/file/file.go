// Package file loads artifact repositories from repository.appmodel.ocm.software
// documents. Documents are validated against their JSON schema before they
// are decoded.
package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"sigs.k8s.io/yaml"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/provider"
	v1 "ocm.software/open-component-model/appmodel/provider/file/spec/v1"
	"ocm.software/open-component-model/appmodel/provider/memory"
	"ocm.software/open-component-model/appmodel/runtime"
)

// ErrInvalidDocument is returned for documents that do not match the schema.
var ErrInvalidDocument = errors.New("invalid repository document")

var Scheme = runtime.NewScheme()

func init() {
	Scheme.MustRegisterWithAlias(&v1.Repository{}, v1.Type)
}

const schemaResource = "repository.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	data, err := v1.JSONSchema()
	if err != nil {
		return nil, fmt.Errorf("generating repository schema failed: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading repository schema failed: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(schemaResource)
})

// Validate checks a YAML or JSON repository document against the schema.
func Validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// Decode validates and decodes a repository document.
func Decode(r io.Reader) (*v1.Repository, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading repository document failed: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	obj, err := Scheme.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	repo, ok := obj.(*v1.Repository)
	if !ok {
		return nil, fmt.Errorf("unexpected document %T", obj)
	}
	return repo, nil
}

// Load reads a repository document into an in-memory repository.
func Load(r io.Reader) (*memory.Repository, error) {
	doc, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return Convert(doc)
}

// LoadFile is Load for a path.
func LoadFile(path string) (*memory.Repository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository %q failed: %w", path, err)
	}
	defer f.Close()
	repo, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading repository %q failed: %w", path, err)
	}
	return repo, nil
}

// Convert turns a decoded document into an in-memory repository. All
// coordinate errors of the document are reported together.
func Convert(doc *v1.Repository) (*memory.Repository, error) {
	repo := memory.New()
	var errs []error
	for i, a := range doc.Artifacts {
		md, desc, err := convertArtifact(a)
		if err != nil {
			errs = append(errs, fmt.Errorf("artifacts[%d]: %w", i, err))
			continue
		}
		if err := repo.Add(md, desc); err != nil {
			errs = append(errs, fmt.Errorf("artifacts[%d]: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return repo, nil
}

func convertArtifact(a v1.Artifact) (*provider.Metadata, *provider.ExtensionDescriptor, error) {
	c, err := artifact.ParseCoordinate(a.Coordinate)
	if err != nil {
		return nil, nil, err
	}
	md := &provider.Metadata{
		Coordinate: c,
		Packaging:  a.Packaging,
		Properties: a.Properties,
	}
	if md.Dependencies, err = convertDependencies(a.Dependencies); err != nil {
		return nil, nil, fmt.Errorf("dependencies of %s: %w", c, err)
	}
	if md.ManagedDependencies, err = convertDependencies(a.ManagedDependencies); err != nil {
		return nil, nil, fmt.Errorf("managed dependencies of %s: %w", c, err)
	}
	if a.Extension == nil {
		return md, nil, nil
	}
	desc, err := convertExtension(c, *a.Extension)
	if err != nil {
		return nil, nil, fmt.Errorf("extension %s: %w", c, err)
	}
	return md, desc, nil
}

func convertDependencies(deps []v1.Dependency) ([]artifact.Dependency, error) {
	out := make([]artifact.Dependency, 0, len(deps))
	for _, d := range deps {
		c, err := artifact.ParseCoordinate(d.Coordinate)
		if err != nil {
			return nil, err
		}
		dep := artifact.Dependency{Coordinate: c, Scope: artifact.Scope(d.Scope).Normalize(), Optional: d.Optional}
		for _, e := range d.Exclusions {
			ex, err := artifact.ParseExclusion(e)
			if err != nil {
				return nil, err
			}
			dep.Exclusions = append(dep.Exclusions, ex)
		}
		out = append(out, dep)
	}
	return out, nil
}

func convertExtension(runtimeArtifact artifact.Coordinate, e v1.Extension) (*provider.ExtensionDescriptor, error) {
	desc := &provider.ExtensionDescriptor{
		ProvidesCapabilities: e.ProvidesCapabilities,
		RequiresCapabilities: e.RequiresCapabilities,
	}
	deployment, err := parseDeploymentArtifact(e.DeploymentArtifact)
	if err != nil {
		return nil, err
	}
	if deployment.Version == "" {
		deployment.Version = runtimeArtifact.Version
	}
	desc.DeploymentArtifact = deployment
	for _, k := range e.DependencyCondition {
		key, err := artifact.ParseKey(k)
		if err != nil {
			return nil, err
		}
		desc.DependencyCondition = append(desc.DependencyCondition, key)
	}
	for _, cd := range e.ConditionalDependencies {
		c, err := artifact.ParseCoordinate(cd)
		if err != nil {
			return nil, err
		}
		desc.ConditionalDependencies = append(desc.ConditionalDependencies, c)
	}
	return desc, nil
}

// parseDeploymentArtifact accepts a coordinate or a group:artifact key.
func parseDeploymentArtifact(s string) (artifact.Coordinate, error) {
	if c, err := artifact.ParseCoordinate(s); err == nil {
		return c, nil
	}
	key, err := artifact.ParseKey(s)
	if err != nil {
		return artifact.Coordinate{}, fmt.Errorf("invalid deployment artifact %q", s)
	}
	return key.WithVersion(""), nil
}
