package resolver_test

import (
	"strings"
	"testing"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/model"
	"ocm.software/open-component-model/appmodel/provider"
	"ocm.software/open-component-model/appmodel/provider/memory"
	"ocm.software/open-component-model/appmodel/resolver"
)

const app = "org.acme:app:1"

func coord(s string) artifact.Coordinate {
	return artifact.MustParseCoordinate(s)
}

func key(s string) artifact.Key {
	return artifact.MustParseKey(s)
}

type depOption func(*artifact.Dependency)

func optional(d *artifact.Dependency) { d.Optional = true }

func scoped(s artifact.Scope) depOption {
	return func(d *artifact.Dependency) { d.Scope = s }
}

func excluding(ga string) depOption {
	return func(d *artifact.Dependency) {
		ex, err := artifact.ParseExclusion(ga)
		if err != nil {
			panic(err)
		}
		d.Exclusions = append(d.Exclusions, ex)
	}
}

func dep(s string, opts ...depOption) artifact.Dependency {
	d := artifact.NewDependency(coord(s))
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// fixture is an in-memory repository with helpers for test graphs.
type fixture struct {
	*memory.Repository
}

func newFixture() fixture {
	return fixture{memory.New()}
}

func (f fixture) add(md *provider.Metadata, desc *provider.ExtensionDescriptor) fixture {
	f.MustAdd(md, desc)
	return f
}

func (f fixture) lib(c string, deps ...artifact.Dependency) fixture {
	return f.add(&provider.Metadata{Coordinate: coord(c), Dependencies: deps}, nil)
}

// extension adds a runtime artifact together with its deployment artifact
// named <artifact>-deployment, which depends on the runtime artifact.
func (f fixture) extension(c string, desc provider.ExtensionDescriptor, deps ...artifact.Dependency) fixture {
	return f.extensionWithDeployment(c, desc, deps, nil)
}

func (f fixture) extensionWithDeployment(c string, desc provider.ExtensionDescriptor, deps, deploymentDeps []artifact.Dependency) fixture {
	rt := coord(c)
	if desc.DeploymentArtifact.IsZero() {
		desc.DeploymentArtifact = coord(rt.GroupID + ":" + rt.ArtifactID + "-deployment:" + rt.Version)
	}
	f.add(&provider.Metadata{Coordinate: rt, Dependencies: deps}, &desc)
	return f.add(&provider.Metadata{
		Coordinate:   desc.DeploymentArtifact,
		Dependencies: append([]artifact.Dependency{artifact.NewDependency(rt)}, deploymentDeps...),
	}, nil)
}

func resolve(t *testing.T, f fixture, req resolver.Request) (*model.ApplicationModel, error) {
	t.Helper()
	if req.Root.IsZero() {
		req.Root = coord(app)
	}
	return resolver.New(f).Resolve(t.Context(), req)
}

func coordinates(deps []model.ResolvedDependency) []string {
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = d.Coordinate.String()
	}
	return out
}

func extensionKeys(m *model.ApplicationModel) []string {
	out := make([]string, len(m.Extensions))
	for i, e := range m.Extensions {
		out[i] = e.Runtime.Key().String()
	}
	return out
}

func flagsOf(t *testing.T, m *model.ApplicationModel, k string) model.Flags {
	t.Helper()
	d, ok := m.Dependency(key(k))
	if !ok {
		t.Fatalf("%s is not part of the model, have %s", k, strings.Join(coordinates(m.Dependencies), ", "))
	}
	return d.Flags
}

func directOf(deps []model.DirectDependency, k string) (model.DirectDependency, bool) {
	for _, d := range deps {
		if d.Coordinate.Key() == key(k) {
			return d, true
		}
	}
	return model.DirectDependency{}, false
}
