// Package resolver computes the application model of an application: the
// runtime classpath and the deployment classpath, with Maven style conflict
// mediation and conditional activation of extensions.
//
// A resolution runs through these stages, all sharing one ResolutionContext:
//
//  1. breadth first graph building with version mediation (builder.go, conflict.go)
//  2. conditional extension activation until a fixed point is reached (activation.go)
//  3. derivation of the deployment classpath from the final runtime graph (deployment.go)
//  4. assembly of the flagged model (assemble.go)
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	slogcontext "github.com/veqryn/slog-context"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/model"
	"ocm.software/open-component-model/appmodel/provider"
)

// Mode selects which classpaths are resolved.
type Mode string

const (
	// ModeDev resolves both classpaths and marks reloadable workspace modules.
	ModeDev Mode = "dev"
	// ModeProd resolves both classpaths.
	ModeProd Mode = "prod"
	// ModeRuntimeOnly resolves the runtime classpath only.
	ModeRuntimeOnly Mode = "runtime-only"
)

// Modes lists all supported modes.
var Modes = []Mode{ModeProd, ModeDev, ModeRuntimeOnly}

// ParseMode returns the mode named s. Unknown names wrap ErrInvalidRequest.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown resolution mode %q: %w", s, ErrInvalidRequest)
}

// DefaultConcurrency bounds the number of parallel provider lookups.
const DefaultConcurrency = 8

// Request describes one resolution.
type Request struct {
	// Root is the application artifact.
	Root artifact.Coordinate
	// Dependencies overrides the direct dependencies of the application. If nil
	// the dependencies of the root metadata are used.
	Dependencies []artifact.Dependency
	// ManagedDependencies pin versions for the whole application. They take
	// precedence over the managed dependencies of the root metadata.
	ManagedDependencies []artifact.Dependency
	// Properties are merged over the properties of the root metadata.
	Properties map[string]string
	// SystemOverrides take precedence over everything declared in metadata.
	// Keys of the form group:artifact[:classifier:type] pin the version of that
	// artifact, all other keys override the property of that name.
	SystemOverrides map[string]string
	// Mode defaults to ModeProd.
	Mode Mode
	// WorkspaceModules are artifacts built from the local workspace. In dev
	// mode they are flagged reloadable.
	WorkspaceModules []artifact.Key
	// Concurrency bounds parallel provider lookups, defaults to DefaultConcurrency.
	Concurrency int
}

// Resolver resolves application models. It holds no state between calls and
// can be used concurrently.
type Resolver struct {
	metadata   provider.MetadataProvider
	extensions provider.ExtensionDescriptorProvider
}

// New creates a resolver backed by a single provider.
func New(p provider.Provider) *Resolver {
	return NewWithProviders(p, p)
}

// NewWithProviders creates a resolver that looks up metadata and extension
// descriptors in separate providers.
func NewWithProviders(metadata provider.MetadataProvider, extensions provider.ExtensionDescriptorProvider) *Resolver {
	return &Resolver{metadata: metadata, extensions: extensions}
}

// Resolve builds the application model for the request. No partial model is
// returned on error.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*model.ApplicationModel, error) {
	logger := slogcontext.FromCtx(ctx).With(slog.String("application", req.Root.String()))
	ctx = slogcontext.NewCtx(ctx, logger)
	start := time.Now()

	rc, err := newResolutionContext(ctx, r, req)
	if err != nil {
		return nil, err
	}

	runtimeGraph, runtimeView, err := activate(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("resolving runtime dependencies of %s: %w", rc.root, err)
	}

	deploymentGraph, err := deriveDeployment(ctx, rc, runtimeGraph, runtimeView)
	if err != nil {
		return nil, fmt.Errorf("resolving deployment dependencies of %s: %w", rc.root, err)
	}

	m, err := assemble(ctx, rc, runtimeGraph, deploymentGraph, runtimeView)
	if err != nil {
		return nil, err
	}
	logger.DebugContext(ctx, "resolved application model",
		slog.String("mode", string(rc.mode)),
		slog.Int("runtime", len(m.Runtime())),
		slog.Int("deployment", len(m.Deployment())),
		slog.Int("extensions", len(m.Extensions)),
		slog.Duration("duration", time.Since(start)))
	return m, nil
}
