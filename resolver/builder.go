package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	slogcontext "github.com/veqryn/slog-context"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/artifact/version"
	"ocm.software/open-component-model/appmodel/model"
	"ocm.software/open-component-model/appmodel/provider"
)

type nodeState int

const (
	statePending nodeState = iota
	stateResolved
	// stateMissing marks optional or conditional targets unknown to the provider.
	stateMissing
	// stateGated marks extensions whose dependency condition is not met yet.
	stateGated
	// stateCompileOnly marks provided dependencies of the application.
	stateCompileOnly
)

// node is the single occurrence of an artifact key in a graph. The first
// breadth first encounter of a key creates it. Later ones add version requests
// and expand it again if they reach it with fewer exclusions or on a required path.
type node struct {
	coord  artifact.Coordinate
	key    artifact.Key
	scope  artifact.Scope
	depth  int
	seq    int
	parent *node
	// optional is set while every path to the node is an optional branch.
	optional bool
	// conditional is set for nodes introduced by an activated conditional dependency.
	conditional bool
	// exclusions are the exclusions shared by all paths to this node.
	exclusions artifact.Exclusions
	// reaches are the paths the node was expanded under.
	reaches []reach
	// managed holds versions managed for the subtree below this node.
	managed map[artifact.Key]string

	state nodeState
	// required is set for gated nodes if any request for them was required.
	required   bool
	descriptor *provider.ExtensionDescriptor
	edges      []edge
}

// edge is a declared dependency of a node.
type edge struct {
	dep artifact.Dependency
	// key is the target key. In the deployment view it is the key of the
	// deployment artifact for substituted extension edges.
	key         artifact.Key
	conditional bool
	// props interpolate the declared version.
	props map[string]string
	// followed is set if the edge took part in resolution, i.e. it was not
	// excluded, cut, pointing back at the application or of a non transitive scope.
	followed bool
}

// reach is what a path to a node passes on to its children.
type reach struct {
	exclusions artifact.Exclusions
	optional   bool
}

// covers reports whether expanding under r keeps at least what expanding under o keeps.
func (r reach) covers(o reach) bool {
	return r.exclusions.SubsetOf(o.exclusions) && (!r.optional || o.optional)
}

// expansion is a queued expansion of a node under one reach.
type expansion struct {
	n     *node
	reach reach
	depth int
}

// widen records r for n and reports whether n has to be expanded under it.
func (n *node) widen(r reach) bool {
	if slices.ContainsFunc(n.reaches, func(prev reach) bool { return prev.covers(r) }) {
		return false
	}
	n.reaches = append(n.reaches, r)
	n.exclusions = n.exclusions.Intersect(r.exclusions)
	if !r.optional {
		n.optional = false
	}
	return true
}

func (n *node) isRequired() bool {
	return !n.optional && !n.conditional
}

// chain returns the coordinates from the application down to n.
func (n *node) chain() []artifact.Coordinate {
	var chain []artifact.Coordinate
	for cur := n; cur != nil; cur = cur.parent {
		chain = append(chain, cur.coord)
	}
	slices.Reverse(chain)
	return chain
}

type graph struct {
	root        *node
	nodes       map[artifact.Key]*node
	order       []*node
	gated       []*node
	compileOnly []*node
	conflicts   *conflictResolver
}

// resolved returns the node of key if it is part of the graph.
func (g *graph) resolved(key artifact.Key) (*node, bool) {
	n, ok := g.nodes[key]
	if !ok || n.state != stateResolved || n == g.root {
		return nil, false
	}
	return n, true
}

// unmet returns the keys of a dependency condition absent from the graph.
func (g *graph) unmet(condition []artifact.Key) []artifact.Key {
	var unmet []artifact.Key
	for _, k := range condition {
		if _, ok := g.resolved(k.Normalize()); !ok {
			unmet = append(unmet, k.Normalize())
		}
	}
	return unmet
}

// view configures a breadth first pass.
type view struct {
	graph model.Graph
	// activated extensions by runtime key. Extensions with a dependency
	// condition are only expanded once activated.
	activated map[artifact.Key]*activation
	// conditional are edges added to a dependent by conditional activation, in activation order.
	conditional map[artifact.Key][]artifact.Dependency
	// seeds pin versions to the selections of the runtime graph.
	seeds map[artifact.Key]string
	// substitutes maps activated runtime extension keys to their deployment artifacts.
	substitutes map[artifact.Key]artifact.Coordinate
	// deploymentOf maps deployment artifact keys back to their runtime key.
	deploymentOf map[artifact.Key]artifact.Key
	// extraRoot are additional edges of the application.
	extraRoot []artifact.Dependency
}

type builder struct {
	rc   *ResolutionContext
	view *view
	g    *graph
	seq  int
}

// build runs one breadth first expansion of the application. Conditional
// edges whose dependent is not part of the result are moved to the
// application and the expansion is repeated.
func build(ctx context.Context, rc *ResolutionContext, v *view) (*graph, error) {
	for {
		b := &builder{rc: rc, view: v}
		g, err := b.run(ctx)
		if err != nil {
			return nil, err
		}
		orphaned := false
		for _, dependent := range slices.SortedFunc(maps.Keys(v.conditional), artifact.Key.Compare) {
			if dependent == rc.rootKey {
				continue
			}
			if _, ok := g.resolved(dependent); ok {
				continue
			}
			slogcontext.FromCtx(ctx).DebugContext(ctx, "attaching conditional dependencies to the application",
				slog.String("dependent", dependent.String()))
			v.conditional[rc.rootKey] = append(v.conditional[rc.rootKey], v.conditional[dependent]...)
			delete(v.conditional, dependent)
			orphaned = true
		}
		if !orphaned {
			return g, nil
		}
	}
}

func (b *builder) run(ctx context.Context) (*graph, error) {
	root := &node{
		coord:   b.rc.root,
		key:     b.rc.rootKey,
		state:   stateResolved,
		reaches: []reach{{}},
	}
	b.g = &graph{
		root:      root,
		nodes:     map[artifact.Key]*node{root.key: root},
		conflicts: newConflictResolver(b.view.graph, b.rc, b.view.seeds),
	}

	var next []expansion
	top := expansion{n: root}
	deps := slices.Concat(b.rc.rootDependencies, b.view.extraRoot)
	for _, dep := range deps {
		if err := b.follow(ctx, top, dep, b.rc.properties, false, &next); err != nil {
			return nil, err
		}
	}
	for _, dep := range b.view.conditional[root.key] {
		if err := b.follow(ctx, top, dep, nil, true, &next); err != nil {
			return nil, err
		}
	}

	for len(next) > 0 {
		level := next
		next = nil
		var coords []artifact.Coordinate
		for _, x := range level {
			if x.n.state == statePending {
				coords = append(coords, x.n.coord)
			}
		}
		if err := b.rc.prefetch(ctx, coords); err != nil {
			return nil, err
		}
		for _, x := range level {
			if err := b.visit(ctx, x, &next); err != nil {
				return nil, err
			}
		}
	}
	return b.g, nil
}

// visit expands a node reached on the previous level. The first expansion
// resolves the node, later ones follow its edges under a further reach.
func (b *builder) visit(ctx context.Context, x expansion, next *[]expansion) error {
	n := x.n
	switch n.state {
	case statePending:
	case stateResolved:
		for i := range n.edges {
			if err := b.admit(ctx, x, &n.edges[i], next); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}

	logger := slogcontext.FromCtx(ctx)

	md, err := b.rc.resolveMetadata(ctx, n.coord)
	if err != nil {
		if !errors.Is(err, provider.ErrNotFound) {
			return fmt.Errorf("resolving %s: %w", n.coord, err)
		}
		if n.isRequired() {
			return &MissingArtifactError{Coordinate: n.coord, Chain: n.parent.chain(), Err: err}
		}
		logger.DebugContext(ctx, "skipping unresolvable artifact",
			slog.String("artifact", n.coord.String()), slog.Bool("optional", n.optional))
		n.state = stateMissing
		return nil
	}

	desc, err := b.rc.describe(ctx, n.coord)
	if err != nil {
		return fmt.Errorf("describing %s: %w", n.coord, err)
	}
	n.descriptor = desc
	if desc != nil && len(desc.DependencyCondition) > 0 && b.view.activated[n.key] == nil {
		n.state = stateGated
		n.required = n.isRequired()
		b.g.gated = append(b.g.gated, n)
		return nil
	}

	if runtimeKey, ok := b.view.deploymentOf[n.key]; ok {
		if !slices.ContainsFunc(md.Dependencies, func(d artifact.Dependency) bool { return d.Key() == runtimeKey }) {
			return &InvalidDeploymentArtifactError{
				Extension:  runtimeKey.WithVersion(b.view.seeds[runtimeKey]),
				Deployment: n.coord,
				Reason:     fmt.Sprintf("does not depend on the runtime artifact %s", runtimeKey),
			}
		}
	}

	n.state = stateResolved
	b.g.order = append(b.g.order, n)

	n.managed = n.parent.managed
	if len(md.ManagedDependencies) > 0 {
		n.managed = make(map[artifact.Key]string, len(n.parent.managed)+len(md.ManagedDependencies))
		for k, v := range n.parent.managed {
			n.managed[k] = v
		}
		for _, d := range md.ManagedDependencies {
			if _, exists := n.managed[d.Key()]; exists {
				continue
			}
			v, err := b.rc.interpolate(d.Version, md.Properties, n.coord)
			if err != nil {
				return err
			}
			n.managed[d.Key()] = v
		}
	}

	for _, dep := range md.Dependencies {
		if err := b.follow(ctx, x, dep, md.Properties, false, next); err != nil {
			return err
		}
	}
	for _, dep := range b.view.conditional[n.key] {
		if err := b.follow(ctx, x, dep, nil, true, next); err != nil {
			return err
		}
	}
	return nil
}

// follow records a declared dependency of the expanded node and admits it.
func (b *builder) follow(ctx context.Context, x expansion, dep artifact.Dependency, props map[string]string, conditional bool, next *[]expansion) error {
	n := x.n
	e := edge{dep: dep, key: dep.Key(), conditional: conditional, props: props}
	defer func() {
		if !e.followed {
			if v, err := b.rc.interpolate(e.dep.Version, props, n.coord); err == nil {
				e.dep.Version = v
			}
		}
		n.edges = append(n.edges, e)
	}()

	if d, ok := b.view.substitutes[e.key]; ok && b.view.deploymentOf[n.key] != e.key {
		e.dep.Coordinate = d
		e.key = d.Key()
	}

	scope := dep.Scope.Normalize()
	if !scope.Valid() {
		return &InvalidDependencyError{From: n.coord, Dependency: e.key, Reason: fmt.Sprintf("unknown scope %q", dep.Scope)}
	}
	if e.key == b.rc.rootKey {
		return nil
	}
	if n == b.g.root && scope == artifact.ScopeProvided {
		return b.compileOnly(ctx, n, &e, props)
	}
	return b.admit(ctx, x, &e, next)
}

// admit follows e under the reach of x unless it is excluded or cut there.
// An edge requests its version once, when it is first followed. Its target
// is created on that request and expanded again for every reach it gains.
func (b *builder) admit(ctx context.Context, x expansion, e *edge, next *[]expansion) error {
	n := x.n
	scope := e.dep.Scope.Normalize()
	if e.key == b.rc.rootKey || !scope.Transitive() || x.reach.exclusions.Excludes(e.key) {
		return nil
	}
	optional := e.dep.Optional && !e.conditional
	if optional && x.reach.optional {
		return nil
	}

	var selected string
	if !e.followed {
		v, err := b.requestedVersion(ctx, n, e, e.props)
		if err != nil {
			return err
		}
		e.followed = true
		b.seq++
		selected = b.g.conflicts.request(e.key, versionRequest{version: v, depth: x.depth + 1, seq: b.seq, from: n.coord})
	}

	r := reach{exclusions: x.reach.exclusions.Union(e.dep.Exclusions), optional: x.reach.optional || optional}
	if existing, ok := b.g.nodes[e.key]; ok {
		required := !r.optional && !e.conditional
		switch existing.state {
		case stateMissing:
			if required {
				return &MissingArtifactError{Coordinate: existing.coord, Chain: n.chain(), Err: provider.ErrNotFound}
			}
		case stateGated:
			if required {
				existing.required = true
			}
		case statePending, stateResolved:
			if existing.widen(r) {
				*next = append(*next, expansion{n: existing, reach: r, depth: x.depth + 1})
			}
		}
		return nil
	}

	childScope := scope
	if n.scope == artifact.ScopeRuntime {
		childScope = artifact.ScopeRuntime
	}
	child := &node{
		coord:       e.key.WithVersion(selected),
		key:         e.key,
		scope:       childScope,
		depth:       x.depth + 1,
		seq:         b.seq,
		parent:      n,
		optional:    r.optional,
		conditional: e.conditional,
		exclusions:  r.exclusions,
		reaches:     []reach{r},
	}
	b.g.nodes[e.key] = child
	*next = append(*next, expansion{n: child, reach: r, depth: child.depth})
	return nil
}

// requestedVersion determines the version n asks for: the subtree managed or
// declared version, with properties interpolated and ranges resolved. Fixed
// versions make the declared one irrelevant.
func (b *builder) requestedVersion(ctx context.Context, n *node, e *edge, props map[string]string) (string, error) {
	raw := e.dep.Version
	if managed, ok := n.managed[e.key]; ok {
		raw = managed
	}
	_, _, fixed := b.g.conflicts.fixed(e.key)
	v, err := b.rc.interpolate(raw, props, n.coord)
	if err != nil {
		if fixed {
			return raw, nil
		}
		return "", err
	}
	e.dep.Version = v
	switch {
	case fixed:
		return v, nil
	case v == "":
		return "", &InvalidDependencyError{From: n.coord, Dependency: e.key, Reason: "no version declared or managed"}
	case version.IsRequirement(v):
		return b.rc.selectVersion(ctx, e.key, v, n.coord)
	}
	return v, nil
}

// compileOnly records a provided dependency of the application. It claims the
// key so that no other path puts it on a classpath.
func (b *builder) compileOnly(ctx context.Context, root *node, e *edge, props map[string]string) error {
	if _, exists := b.g.nodes[e.key]; exists {
		return nil
	}
	v, err := b.requestedVersion(ctx, root, e, props)
	if err != nil {
		return err
	}
	e.followed = true
	b.seq++
	selected := b.g.conflicts.request(e.key, versionRequest{version: v, depth: 1, seq: b.seq, from: root.coord})
	n := &node{
		coord:  e.key.WithVersion(selected),
		key:    e.key,
		scope:  artifact.ScopeProvided,
		depth:  1,
		seq:    b.seq,
		parent: root,
		state:  stateCompileOnly,
	}
	b.g.nodes[e.key] = n
	b.g.compileOnly = append(b.g.compileOnly, n)
	return nil
}
