package resolver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/artifact/version"
	"ocm.software/open-component-model/appmodel/provider"
)

type lookup[T any] struct {
	value T
	err   error
}

// ResolutionContext carries everything a single resolution needs. It is created
// per Resolve call and never shared between calls.
type ResolutionContext struct {
	metadataProvider  provider.MetadataProvider
	extensionProvider provider.ExtensionDescriptorProvider

	mode        Mode
	concurrency int

	root         artifact.Coordinate
	rootKey      artifact.Key
	rootMetadata *provider.Metadata
	// rootDependencies are the direct dependencies of the application in declaration order.
	rootDependencies []artifact.Dependency
	// properties of the application, request properties merged over metadata ones.
	properties map[string]string
	// propertyOverrides and versionOverrides are the split system overrides.
	propertyOverrides map[string]string
	versionOverrides  map[artifact.Key]string
	// rootManaged are the application wide version pins.
	rootManaged map[artifact.Key]string
	workspace   map[artifact.Key]bool

	mu          sync.Mutex
	metadata    map[artifact.Coordinate]*lookup[*provider.Metadata]
	descriptors map[artifact.Coordinate]*lookup[*provider.ExtensionDescriptor]
	versions    map[artifact.Key]*lookup[[]string]
}

func newResolutionContext(ctx context.Context, r *Resolver, req Request) (*ResolutionContext, error) {
	if req.Root.GroupID == "" || req.Root.ArtifactID == "" {
		return nil, fmt.Errorf("application coordinate requires group and artifact: %w", ErrInvalidRequest)
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeProd
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	root := req.Root.Key().WithVersion(req.Root.Version)
	rc := &ResolutionContext{
		metadataProvider:  r.metadata,
		extensionProvider: r.extensions,
		mode:              mode,
		concurrency:       concurrency,
		root:              root,
		rootKey:           root.Key(),
		properties:        make(map[string]string),
		propertyOverrides: make(map[string]string),
		versionOverrides:  make(map[artifact.Key]string),
		rootManaged:       make(map[artifact.Key]string),
		workspace:         make(map[artifact.Key]bool),
		metadata:          make(map[artifact.Coordinate]*lookup[*provider.Metadata]),
		descriptors:       make(map[artifact.Coordinate]*lookup[*provider.ExtensionDescriptor]),
		versions:          make(map[artifact.Key]*lookup[[]string]),
	}

	for k, v := range req.SystemOverrides {
		if strings.Contains(k, ":") {
			key, err := artifact.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("system override %q: %w", k, errors.Join(err, ErrInvalidRequest))
			}
			rc.versionOverrides[key] = v
			continue
		}
		rc.propertyOverrides[k] = v
	}
	for _, k := range req.WorkspaceModules {
		rc.workspace[k.Normalize()] = true
	}

	md, err := rc.resolveMetadata(ctx, root)
	switch {
	case err == nil:
		rc.rootMetadata = md
	case errors.Is(err, provider.ErrNotFound) && req.Dependencies != nil:
		// applications that are not published yet declare their dependencies in the request
		rc.rootMetadata = &provider.Metadata{Coordinate: root}
	case errors.Is(err, provider.ErrNotFound):
		return nil, &MissingArtifactError{Coordinate: root, Err: err}
	default:
		return nil, fmt.Errorf("resolving application %s: %w", root, err)
	}

	maps.Copy(rc.properties, rc.rootMetadata.Properties)
	maps.Copy(rc.properties, req.Properties)

	rc.rootDependencies = rc.rootMetadata.Dependencies
	if req.Dependencies != nil {
		rc.rootDependencies = req.Dependencies
	}

	// request management wins over the one of the root metadata
	for _, managed := range [][]artifact.Dependency{req.ManagedDependencies, rc.rootMetadata.ManagedDependencies} {
		for _, d := range managed {
			key := d.Key()
			if _, exists := rc.rootManaged[key]; exists {
				continue
			}
			v, err := rc.interpolate(d.Version, rc.properties, root)
			if err != nil {
				return nil, err
			}
			rc.rootManaged[key] = v
		}
	}
	return rc, nil
}

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// maxInterpolationDepth bounds nested property references such as ${a} -> ${b}.
const maxInterpolationDepth = 8

// interpolate replaces ${name} placeholders. System overrides win over the
// properties of the declaring artifact which win over application properties.
func (rc *ResolutionContext) interpolate(value string, props map[string]string, declaredBy artifact.Coordinate) (string, error) {
	result := value
	for range maxInterpolationDepth {
		if !strings.Contains(result, "${") {
			return result, nil
		}
		var missing string
		result = placeholder.ReplaceAllStringFunc(result, func(match string) string {
			name := match[2 : len(match)-1]
			if v, ok := rc.propertyOverrides[name]; ok {
				return v
			}
			if v, ok := props[name]; ok {
				return v
			}
			if v, ok := rc.properties[name]; ok {
				return v
			}
			if missing == "" {
				missing = name
			}
			return match
		})
		if missing != "" {
			return "", &UnresolvedPropertyError{Property: missing, Value: value, Artifact: declaredBy}
		}
	}
	return "", &UnresolvedPropertyError{Property: strings.Trim(placeholder.FindString(result), "${}"), Value: value, Artifact: declaredBy}
}

func (rc *ResolutionContext) resolveMetadata(ctx context.Context, c artifact.Coordinate) (*provider.Metadata, error) {
	rc.mu.Lock()
	l, ok := rc.metadata[c]
	rc.mu.Unlock()
	if ok {
		return l.value, l.err
	}
	md, err := rc.metadataProvider.Resolve(ctx, c)
	if err == nil && md == nil {
		err = fmt.Errorf("%s: %w", c, provider.ErrNotFound)
	}
	if ctx.Err() == nil {
		rc.mu.Lock()
		rc.metadata[c] = &lookup[*provider.Metadata]{value: md, err: err}
		rc.mu.Unlock()
	}
	return md, err
}

// describe returns the extension descriptor of c, nil for plain libraries.
func (rc *ResolutionContext) describe(ctx context.Context, c artifact.Coordinate) (*provider.ExtensionDescriptor, error) {
	rc.mu.Lock()
	l, ok := rc.descriptors[c]
	rc.mu.Unlock()
	if ok {
		return l.value, l.err
	}
	desc, err := rc.extensionProvider.Describe(ctx, c)
	if errors.Is(err, provider.ErrNotFound) {
		desc, err = nil, nil
	}
	if ctx.Err() == nil {
		rc.mu.Lock()
		rc.descriptors[c] = &lookup[*provider.ExtensionDescriptor]{value: desc, err: err}
		rc.mu.Unlock()
	}
	return desc, err
}

func (rc *ResolutionContext) availableVersions(ctx context.Context, key artifact.Key) ([]string, error) {
	rc.mu.Lock()
	l, ok := rc.versions[key]
	rc.mu.Unlock()
	if ok {
		return l.value, l.err
	}
	versions, err := rc.metadataProvider.Versions(ctx, key)
	if ctx.Err() == nil {
		rc.mu.Lock()
		rc.versions[key] = &lookup[[]string]{value: versions, err: err}
		rc.mu.Unlock()
	}
	return versions, err
}

// selectVersion resolves a version range against the available versions.
func (rc *ResolutionContext) selectVersion(ctx context.Context, key artifact.Key, requirement string, from artifact.Coordinate) (string, error) {
	req, err := version.ParseRequirement(requirement)
	if err != nil {
		return "", &InvalidDependencyError{From: from, Dependency: key, Reason: err.Error()}
	}
	available, err := rc.availableVersions(ctx, key)
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		return "", fmt.Errorf("listing versions of %s: %w", key, err)
	}
	selected, ok := version.Select(req, available)
	if !ok {
		return "", &NoMatchingVersionError{Key: key, Requirement: requirement, Available: available, From: from}
	}
	return selected, nil
}

// prefetch loads metadata and descriptors of a whole breadth first level in
// parallel. Lookup errors are memoized and surface when the level is visited
// in order, so failures are reported deterministically.
func (rc *ResolutionContext) prefetch(ctx context.Context, coordinates []artifact.Coordinate) error {
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(rc.concurrency)
	for _, c := range coordinates {
		eg.Go(func() error {
			if _, err := rc.resolveMetadata(egctx, c); err != nil {
				return nil //nolint:nilerr // reported during the visit
			}
			_, _ = rc.describe(egctx, c)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
