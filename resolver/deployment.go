package resolver

import (
	"context"
	"log/slog"
	"slices"

	slogcontext "github.com/veqryn/slog-context"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/model"
)

// deriveDeployment builds the deployment classpath from the final runtime
// graph. Every edge to an activated extension points at its deployment
// artifact instead, except the edge of the deployment artifact itself. Keys
// of the runtime graph keep their runtime version.
func deriveDeployment(ctx context.Context, rc *ResolutionContext, runtime *graph, rv *view) (*graph, error) {
	if rc.mode == ModeRuntimeOnly {
		return nil, nil
	}
	logger := slogcontext.FromCtx(ctx)

	v := &view{
		graph:        model.GraphDeployment,
		activated:    rv.activated,
		conditional:  make(map[artifact.Key][]artifact.Dependency, len(rv.conditional)),
		seeds:        make(map[artifact.Key]string, len(runtime.order)),
		substitutes:  make(map[artifact.Key]artifact.Coordinate),
		deploymentOf: make(map[artifact.Key]artifact.Key),
	}
	for k, deps := range rv.conditional {
		v.conditional[k] = slices.Clone(deps)
	}
	for _, n := range slices.Concat(runtime.order, runtime.compileOnly) {
		v.seeds[n.key] = n.coord.Version
	}

	var extensions []artifact.Key
	for _, n := range runtime.order {
		a := rv.activated[n.key]
		if a == nil {
			continue
		}
		d := a.descriptor.DeploymentArtifact
		d = d.Key().WithVersion(d.Version)
		if d.Version == "" {
			d.Version = n.coord.Version
		}
		if d.Key() == n.key {
			return nil, &InvalidDeploymentArtifactError{Extension: n.coord, Deployment: d, Reason: "deployment artifact equals the runtime artifact"}
		}
		v.substitutes[n.key] = d
		v.deploymentOf[d.Key()] = n.key
		extensions = append(extensions, n.key)
	}

	injected := make(map[artifact.Key]bool)
	for {
		g, err := build(ctx, rc, v)
		if err != nil {
			return nil, err
		}
		var missing []artifact.Key
		for _, k := range extensions {
			d := v.substitutes[k]
			if _, ok := g.resolved(d.Key()); ok {
				continue
			}
			if injected[d.Key()] {
				return nil, &InvalidDeploymentArtifactError{
					Extension:  k.WithVersion(v.seeds[k]),
					Deployment: d,
					Reason:     "not reachable from the application",
				}
			}
			injected[d.Key()] = true
			v.extraRoot = append(v.extraRoot, artifact.NewDependency(d))
			missing = append(missing, d.Key())
		}
		if len(missing) == 0 {
			logger.DebugContext(ctx, "derived deployment graph",
				slog.Int("nodes", len(g.order)),
				slog.Int("extensions", len(extensions)),
				slog.Int("injected", len(injected)))
			return g, nil
		}
		logger.DebugContext(ctx, "adding unreached deployment artifacts to the application", slog.Any("artifacts", missing))
	}
}

