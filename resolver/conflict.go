package resolver

import (
	"slices"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/model"
)

type versionRequest struct {
	// version is the declared version after interpolation, range selection and
	// management of the requesting subtree.
	version string
	depth   int
	// seq is the breadth first order of the request, lower was declared first.
	seq  int
	from artifact.Coordinate
}

// conflictResolver mediates all version requests of one graph. The winner of
// a key is, in order of precedence:
//
//  1. a system override
//  2. the selection of the runtime graph (deployment graphs only)
//  3. an application managed version
//  4. the request closest to the application
//  5. the first declared request among equally close ones
type conflictResolver struct {
	graph     model.Graph
	overrides map[artifact.Key]string
	seeds     map[artifact.Key]string
	managed   map[artifact.Key]string

	requests map[artifact.Key][]versionRequest
	keys     []artifact.Key
}

func newConflictResolver(graph model.Graph, rc *ResolutionContext, seeds map[artifact.Key]string) *conflictResolver {
	return &conflictResolver{
		graph:     graph,
		overrides: rc.versionOverrides,
		seeds:     seeds,
		managed:   rc.rootManaged,
		requests:  make(map[artifact.Key][]versionRequest),
	}
}

// fixed returns a version that does not depend on the requests.
func (c *conflictResolver) fixed(key artifact.Key) (string, model.ConflictReason, bool) {
	if v, ok := c.overrides[key]; ok {
		return v, model.ReasonOverride, true
	}
	if v, ok := c.seeds[key]; ok {
		return v, model.ReasonRuntimePinned, true
	}
	if v, ok := c.managed[key]; ok {
		return v, model.ReasonManaged, true
	}
	return "", "", false
}

// request records a version request and returns the version currently selected for key.
func (c *conflictResolver) request(key artifact.Key, req versionRequest) string {
	if _, seen := c.requests[key]; !seen {
		c.keys = append(c.keys, key)
	}
	c.requests[key] = append(c.requests[key], req)
	v, _ := c.resolve(key)
	return v
}

func (c *conflictResolver) resolve(key artifact.Key) (string, model.ConflictReason) {
	if v, reason, ok := c.fixed(key); ok {
		return v, reason
	}
	reqs := c.requests[key]
	if len(reqs) == 0 {
		return "", ""
	}
	best := reqs[0]
	tied := false
	for _, r := range reqs[1:] {
		switch {
		case r.depth < best.depth || (r.depth == best.depth && r.seq < best.seq):
			tied = r.depth == best.depth
			best = r
		case r.depth == best.depth && r.version != best.version:
			tied = true
		}
	}
	if tied {
		return best.version, model.ReasonFirstDeclared
	}
	return best.version, model.ReasonNearest
}

// conflicts reports keys requested in more than one version, or whose
// requested version was replaced by a fixed one.
func (c *conflictResolver) conflicts(include func(artifact.Key) bool) []model.Conflict {
	var out []model.Conflict
	for _, key := range c.keys {
		if !include(key) {
			continue
		}
		reqs := c.requests[key]
		selected, reason := c.resolve(key)
		distinct := slices.ContainsFunc(reqs, func(r versionRequest) bool {
			return r.version != selected
		})
		if !distinct {
			continue
		}
		conflict := model.Conflict{Key: key, Graph: c.graph, Selected: selected, Reason: reason}
		for _, r := range reqs {
			conflict.Requested = append(conflict.Requested, model.VersionRequest{Version: r.version, Depth: r.depth, From: r.from})
		}
		out = append(out, conflict)
	}
	return out
}
