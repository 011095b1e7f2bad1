package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	slogcontext "github.com/veqryn/slog-context"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/model"
	"ocm.software/open-component-model/appmodel/provider"
)

// activation records how an extension became part of the application.
type activation struct {
	coord      artifact.Coordinate
	descriptor *provider.ExtensionDescriptor
	kind       model.ActivationKind
	// by is the extension that declared the conditional dependency.
	by    *artifact.Key
	round int
}

// activate builds the runtime graph and activates extensions until a round
// adds nothing new. Activation is monotone, an activated extension stays
// activated even if a later rebuild selects a different path to it.
func activate(ctx context.Context, rc *ResolutionContext) (*graph, *view, error) {
	logger := slogcontext.FromCtx(ctx)
	v := &view{
		graph:       model.GraphRuntime,
		activated:   make(map[artifact.Key]*activation),
		conditional: make(map[artifact.Key][]artifact.Dependency),
	}

	for round := 1; ; round++ {
		g, err := build(ctx, rc, v)
		if err != nil {
			return nil, nil, err
		}

		var added []artifact.Key
		register := func(key artifact.Key, a *activation) error {
			if a.descriptor.DeploymentArtifact.GroupID == "" || a.descriptor.DeploymentArtifact.ArtifactID == "" {
				return &InvalidDeploymentArtifactError{Extension: a.coord, Reason: "no deployment artifact declared"}
			}
			v.activated[key] = a
			added = append(added, key)
			return nil
		}

		// extensions reached as dependencies, unconditional ones first
		for _, n := range g.order {
			if n.descriptor == nil || v.activated[n.key] != nil {
				continue
			}
			if err := register(n.key, &activation{coord: n.coord, descriptor: n.descriptor, kind: reachedAs(g, n), round: round}); err != nil {
				return nil, nil, err
			}
		}
		for _, n := range g.gated {
			if len(g.unmet(n.descriptor.DependencyCondition)) > 0 {
				continue
			}
			if err := register(n.key, &activation{coord: n.coord, descriptor: n.descriptor, kind: reachedAs(g, n), round: round}); err != nil {
				return nil, nil, err
			}
		}

		injected, err := injectConditional(ctx, rc, g, v, round, register)
		if err != nil {
			return nil, nil, err
		}

		logger.DebugContext(ctx, "extension activation round",
			slog.Int("round", round),
			slog.Int("nodes", len(g.order)),
			slog.Any("activated", added),
			slog.Int("conditional", injected))

		if len(added) == 0 && injected == 0 {
			if err := checkGated(g); err != nil {
				return nil, nil, err
			}
			return g, v, nil
		}
	}
}

// injectConditional walks the conditional dependencies of all extensions of g
// and adds those whose condition is met as edges of the declaring extension.
func injectConditional(
	ctx context.Context,
	rc *ResolutionContext,
	g *graph,
	v *view,
	round int,
	register func(artifact.Key, *activation) error,
) (int, error) {
	logger := slogcontext.FromCtx(ctx)
	injected := 0
	for _, n := range g.order {
		if n.descriptor == nil || v.activated[n.key] == nil {
			continue
		}
		for _, c := range n.descriptor.ConditionalDependencies {
			key := c.Key()
			if slices.ContainsFunc(v.conditional[n.key], func(d artifact.Dependency) bool { return d.Key() == key }) {
				continue
			}
			if n.exclusions.Excludes(key) {
				continue
			}
			if _, present := g.nodes[key]; present {
				continue
			}

			if _, err := rc.resolveMetadata(ctx, c); err != nil {
				if errors.Is(err, provider.ErrNotFound) {
					logger.DebugContext(ctx, "skipping unresolvable conditional dependency",
						slog.String("extension", n.coord.String()), slog.String("dependency", c.String()))
					continue
				}
				return 0, fmt.Errorf("resolving conditional dependency %s of %s: %w", c, n.coord, err)
			}
			desc, err := rc.describe(ctx, c)
			if err != nil {
				return 0, fmt.Errorf("describing conditional dependency %s of %s: %w", c, n.coord, err)
			}
			if desc != nil {
				if len(g.unmet(desc.DependencyCondition)) > 0 {
					continue
				}
				if v.activated[key] == nil {
					by := n.key
					if err := register(key, &activation{coord: c, descriptor: desc, kind: model.ActivationConditional, by: &by, round: round}); err != nil {
						return 0, err
					}
				}
			}
			v.conditional[n.key] = append(v.conditional[n.key], artifact.NewDependency(c))
			injected++
		}
	}
	return injected, nil
}

func reachedAs(g *graph, n *node) model.ActivationKind {
	if n.parent == g.root && !n.conditional {
		return model.ActivationDirect
	}
	return model.ActivationTransitive
}

// checkGated fails for extensions reached through required edges whose
// condition stayed unsatisfied.
func checkGated(g *graph) error {
	for _, n := range g.gated {
		if !n.required {
			continue
		}
		return &UnsatisfiedConditionError{
			Extension: n.coord,
			Unmet:     g.unmet(n.descriptor.DependencyCondition),
			Chain:     n.parent.chain(),
		}
	}
	return nil
}
