// Package memory provides an in-memory artifact repository.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/artifact/version"
	"ocm.software/open-component-model/appmodel/provider"
)

// Repository holds metadata and extension descriptors keyed by coordinate.
type Repository struct {
	mu         sync.RWMutex
	metadata   map[artifact.Coordinate]*provider.Metadata
	extensions map[artifact.Coordinate]*provider.ExtensionDescriptor
}

var _ provider.Provider = (*Repository)(nil)

func New() *Repository {
	return &Repository{
		metadata:   make(map[artifact.Coordinate]*provider.Metadata),
		extensions: make(map[artifact.Coordinate]*provider.ExtensionDescriptor),
	}
}

func normalize(c artifact.Coordinate) artifact.Coordinate {
	return c.Key().WithVersion(c.Version)
}

// Add registers an artifact. ext may be nil for plain libraries.
func (r *Repository) Add(md *provider.Metadata, ext *provider.ExtensionDescriptor) error {
	if md == nil || md.Coordinate.GroupID == "" || md.Coordinate.ArtifactID == "" || md.Coordinate.Version == "" {
		return fmt.Errorf("artifact metadata requires group, artifact and version")
	}
	c := normalize(md.Coordinate)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.metadata[c]; exists {
		return fmt.Errorf("artifact %s is already registered", c)
	}
	stored := cloneMetadata(md)
	stored.Coordinate = c
	r.metadata[c] = stored
	if ext != nil {
		r.extensions[c] = cloneDescriptor(ext)
	}
	return nil
}

// MustAdd is Add for static fixtures.
func (r *Repository) MustAdd(md *provider.Metadata, ext *provider.ExtensionDescriptor) {
	if err := r.Add(md, ext); err != nil {
		panic(err)
	}
}

func (r *Repository) Resolve(_ context.Context, c artifact.Coordinate) (*provider.Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	md, ok := r.metadata[normalize(c)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", c, provider.ErrNotFound)
	}
	return cloneMetadata(md), nil
}

func (r *Repository) Versions(_ context.Context, key artifact.Key) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key = key.Normalize()
	var versions []string
	for c := range r.metadata {
		if c.Key() == key {
			versions = append(versions, c.Version)
		}
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%s: %w", key, provider.ErrNotFound)
	}
	slices.SortFunc(versions, version.Compare)
	return versions, nil
}

func (r *Repository) Describe(_ context.Context, c artifact.Coordinate) (*provider.ExtensionDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c = normalize(c)
	if _, ok := r.metadata[c]; !ok {
		return nil, fmt.Errorf("%s: %w", c, provider.ErrNotFound)
	}
	if ext, ok := r.extensions[c]; ok {
		return cloneDescriptor(ext), nil
	}
	return nil, nil
}

// Coordinates lists all registered coordinates in a stable order.
func (r *Repository) Coordinates() []artifact.Coordinate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.SortedFunc(maps.Keys(r.metadata), func(a, b artifact.Coordinate) int {
		if c := a.Key().Compare(b.Key()); c != 0 {
			return c
		}
		return version.Compare(a.Version, b.Version)
	})
}

func cloneMetadata(md *provider.Metadata) *provider.Metadata {
	out := *md
	out.Properties = maps.Clone(md.Properties)
	out.Dependencies = cloneDependencies(md.Dependencies)
	out.ManagedDependencies = cloneDependencies(md.ManagedDependencies)
	return &out
}

func cloneDependencies(deps []artifact.Dependency) []artifact.Dependency {
	if deps == nil {
		return nil
	}
	out := make([]artifact.Dependency, len(deps))
	for i, d := range deps {
		d.Exclusions = slices.Clone(d.Exclusions)
		out[i] = d
	}
	return out
}

func cloneDescriptor(ext *provider.ExtensionDescriptor) *provider.ExtensionDescriptor {
	out := *ext
	out.DependencyCondition = slices.Clone(ext.DependencyCondition)
	out.ConditionalDependencies = slices.Clone(ext.ConditionalDependencies)
	out.ProvidesCapabilities = slices.Clone(ext.ProvidesCapabilities)
	out.RequiresCapabilities = slices.Clone(ext.RequiresCapabilities)
	return &out
}
