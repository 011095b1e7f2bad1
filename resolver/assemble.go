package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	slogcontext "github.com/veqryn/slog-context"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/dag"
	"ocm.software/open-component-model/appmodel/model"
)

type entry struct {
	dep  model.ResolvedDependency
	node *node
}

// assembler turns the runtime and deployment graphs into the flagged model.
type assembler struct {
	rc         *ResolutionContext
	runtime    *graph
	deployment *graph
	view       *view

	entries map[artifact.Key]*entry
	order   []artifact.Key
}

func assemble(ctx context.Context, rc *ResolutionContext, runtime, deployment *graph, rv *view) (*model.ApplicationModel, error) {
	a := &assembler{
		rc:         rc,
		runtime:    runtime,
		deployment: deployment,
		view:       rv,
		entries:    make(map[artifact.Key]*entry),
	}
	if err := a.collect(); err != nil {
		return nil, err
	}
	if rc.mode == ModeDev {
		a.markReloadable()
	}

	m := &model.ApplicationModel{
		Application: model.ResolvedDependency{
			Coordinate:   rc.root,
			Scope:        artifact.ScopeCompile,
			Dependencies: a.directDependencies(runtime.root),
		},
		Mode: string(rc.mode),
	}
	for _, k := range a.order {
		e := a.entries[k]
		e.dep.Dependencies = a.directDependencies(e.node)
		m.Dependencies = append(m.Dependencies, e.dep)
	}

	var err error
	if m.Extensions, err = a.extensions(); err != nil {
		return nil, err
	}
	if m.Capabilities, err = a.capabilities(m.Extensions); err != nil {
		return nil, err
	}
	m.Conflicts = a.conflicts()

	if m.RuntimeGraph, err = a.dag(ctx, runtime); err != nil {
		return nil, err
	}
	if deployment != nil {
		if m.DeploymentGraph, err = a.dag(ctx, deployment); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (a *assembler) add(n *node, flags model.Flags) {
	a.entries[n.key] = &entry{
		dep:  model.ResolvedDependency{Coordinate: n.coord, Scope: n.scope.Normalize(), Flags: flags},
		node: n,
	}
	a.order = append(a.order, n.key)
}

// collect creates one entry per key: runtime classpath in resolution order,
// then deployment only artifacts, then compile only ones.
func (a *assembler) collect() error {
	direct := make(map[artifact.Key]bool)
	for _, e := range a.runtime.root.edges {
		if e.followed && !e.conditional {
			direct[e.key] = true
		}
	}

	for _, n := range a.runtime.order {
		flags := model.FlagRuntimeCP
		if n.optional {
			flags |= model.FlagOptional
		}
		if direct[n.key] {
			flags |= model.FlagDirect
		}
		if a.view.activated[n.key] != nil {
			flags |= model.FlagRuntimeExtensionArtifact
			if direct[n.key] {
				flags |= model.FlagTopLevelRuntimeExtensionArtifact
			}
		}
		a.add(n, flags)
	}

	if a.deployment != nil {
		for _, n := range a.deployment.order {
			if e, ok := a.entries[n.key]; ok {
				if e.dep.Coordinate.Version != n.coord.Version {
					return &InvariantViolationError{Reason: fmt.Sprintf(
						"%s selected as %s on the runtime classpath but %s on the deployment classpath",
						n.key, e.dep.Coordinate.Version, n.coord.Version)}
				}
				e.dep.Flags |= model.FlagDeploymentCP
				continue
			}
			flags := model.FlagDeploymentCP
			if n.optional {
				flags |= model.FlagOptional
			}
			a.add(n, flags)
		}
	}

	for _, n := range a.runtime.compileOnly {
		if _, ok := a.entries[n.key]; ok {
			return &InvariantViolationError{Reason: fmt.Sprintf("compile only dependency %s is on a classpath", n.key)}
		}
		a.add(n, model.FlagDirect|model.FlagCompileOnly)
	}
	return nil
}

// markReloadable flags workspace modules reachable from the application
// through workspace modules only.
func (a *assembler) markReloadable() {
	queue := []*node{a.runtime.root}
	seen := map[artifact.Key]bool{a.runtime.root.key: true}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range n.edges {
			if !e.followed || seen[e.key] || !a.rc.workspace[e.key] {
				continue
			}
			target, ok := a.runtime.resolved(e.key)
			if !ok {
				continue
			}
			seen[e.key] = true
			a.entries[e.key].dep.Flags |= model.FlagReloadable
			queue = append(queue, target)
		}
	}
}

// directDependencies lists the declared edges of n with the versions selected
// for the application.
func (a *assembler) directDependencies(n *node) []model.DirectDependency {
	var out []model.DirectDependency
	for _, e := range n.edges {
		if e.conditional {
			continue
		}
		scope := e.dep.Scope.Normalize()
		d := model.DirectDependency{Coordinate: e.dep.Coordinate.Key().WithVersion(e.dep.Version), Scope: scope}
		if e.dep.Optional {
			d.Flags |= model.FlagOptional
		}
		if scope == artifact.ScopeProvided {
			d.Flags |= model.FlagCompileOnly
		}
		if target, ok := a.entries[e.key]; ok {
			d.Coordinate = target.dep.Coordinate
		} else {
			d.Flags |= model.FlagMissingFromApplication
		}
		out = append(out, d)
	}
	return out
}

func (a *assembler) extensions() ([]model.Extension, error) {
	var out []model.Extension
	for _, n := range a.runtime.order {
		act := a.view.activated[n.key]
		if act == nil {
			continue
		}
		ext := model.Extension{
			Runtime:     n.coord,
			Activation:  act.kind,
			ActivatedBy: act.by,
			Round:       act.round,
		}
		for _, k := range act.descriptor.DependencyCondition {
			ext.Condition = append(ext.Condition, k.Normalize())
		}
		if a.deployment != nil {
			dk := act.descriptor.DeploymentArtifact.Key()
			d, ok := a.deployment.resolved(dk)
			if !ok {
				return nil, &InvariantViolationError{Reason: fmt.Sprintf("deployment artifact %s of extension %s is not on the deployment classpath", dk, n.coord)}
			}
			ext.Deployment = d.coord
		}
		out = append(out, ext)
	}
	return out, nil
}

// capabilities collects the capability contracts of the activated extensions
// and checks that every required capability is provided.
func (a *assembler) capabilities(extensions []model.Extension) ([]model.CapabilityContract, error) {
	var contracts []model.CapabilityContract
	provided := make(map[string]bool)
	for _, ext := range extensions {
		desc := a.view.activated[ext.Runtime.Key()].descriptor
		if len(desc.ProvidesCapabilities) == 0 && len(desc.RequiresCapabilities) == 0 {
			continue
		}
		contracts = append(contracts, model.CapabilityContract{
			Extension: ext.Runtime.Key(),
			Provides:  slices.Clone(desc.ProvidesCapabilities),
			Requires:  slices.Clone(desc.RequiresCapabilities),
		})
		for _, c := range desc.ProvidesCapabilities {
			provided[c] = true
		}
	}
	var errs []error
	for _, ext := range extensions {
		for _, c := range a.view.activated[ext.Runtime.Key()].descriptor.RequiresCapabilities {
			if !provided[c] {
				errs = append(errs, &MissingCapabilityError{Extension: ext.Runtime, Capability: c})
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return contracts, nil
}

// conflicts reports the mediated requests of keys in the model. Deployment
// conflicts are limited to deployment only keys, runtime keys are pinned.
func (a *assembler) conflicts() []model.Conflict {
	out := a.runtime.conflicts.conflicts(func(k artifact.Key) bool {
		_, ok := a.entries[k]
		return ok
	})
	if a.deployment != nil {
		out = append(out, a.deployment.conflicts.conflicts(func(k artifact.Key) bool {
			e, ok := a.entries[k]
			return ok && !e.dep.Flags.Any(model.FlagRuntimeCP|model.FlagCompileOnly)
		})...)
	}
	return out
}

// dag builds the dependency graph of g with the application as root vertex.
func (a *assembler) dag(ctx context.Context, g *graph) (*dag.DirectedAcyclicGraph[string], error) {
	d := dag.NewDirectedAcyclicGraph[string]()
	nodes := slices.Concat([]*node{g.root}, g.order, g.compileOnly)

	for _, n := range nodes {
		attrs := map[string]any{
			model.AttributeCoordinate: n.coord,
			model.AttributeScope:      n.scope.Normalize(),
		}
		if e, ok := a.entries[n.key]; ok {
			attrs[model.AttributeFlags] = e.dep.Flags
		}
		if err := d.AddVertex(n.key.String(), attrs); err != nil {
			return nil, &InvariantViolationError{Reason: err.Error()}
		}
	}

	for _, n := range nodes {
		for _, e := range n.edges {
			if !e.followed || !d.Contains(e.key.String()) || e.key == n.key {
				continue
			}
			err := d.AddEdge(n.key.String(), e.key.String(), map[string]any{model.AttributeScope: e.dep.Scope.Normalize()})
			var cycle *dag.CycleError
			switch {
			case errors.As(err, &cycle):
				// dependency cycles are legal, the edge closing one is left out
				slogcontext.FromCtx(ctx).DebugContext(ctx, "skipping edge closing a dependency cycle",
					slog.String("from", n.key.String()), slog.String("to", e.key.String()))
			case err != nil:
				return nil, &InvariantViolationError{Reason: err.Error()}
			}
		}
	}
	return d, nil
}
