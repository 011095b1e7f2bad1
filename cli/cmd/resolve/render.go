package resolve

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
	"sigs.k8s.io/yaml"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/dag"
	"ocm.software/open-component-model/appmodel/model"
)

const (
	OutputTable = "table"
	OutputTree  = "tree"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

func Outputs() []string {
	return []string{OutputTable, OutputTree, OutputJSON, OutputYAML}
}

const (
	ClasspathRuntime    = "runtime"
	ClasspathDeployment = "deployment"
	ClasspathAll        = "all"
)

func Classpaths() []string {
	return []string{ClasspathRuntime, ClasspathDeployment, ClasspathAll}
}

func render(w io.Writer, m *model.ApplicationModel, output, classpath string) error {
	switch output {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case OutputYAML:
		data, err := yaml.Marshal(m)
		if err != nil {
			return fmt.Errorf("encoding application model as yaml failed: %w", err)
		}
		_, err = w.Write(data)
		return err
	case OutputTable:
		return renderTable(w, m, classpath)
	case OutputTree:
		return renderTrees(w, m, classpath)
	default:
		return fmt.Errorf("unknown output format: %q", output)
	}
}

func dependencies(m *model.ApplicationModel, classpath string) []model.ResolvedDependency {
	switch classpath {
	case ClasspathRuntime:
		return m.Runtime()
	case ClasspathDeployment:
		return m.Deployment()
	default:
		return m.Dependencies
	}
}

func renderTable(w io.Writer, m *model.ApplicationModel, classpath string) error {
	style := table.StyleLight
	style.Options.DrawBorder = false
	style.Format.Header = text.FormatUpper
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			style.Size.WidthMax = width
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Coordinate", "Scope", "Flags"})
	for _, d := range dependencies(m, classpath) {
		t.AppendRow(table.Row{d.Coordinate.String(), d.Scope, strings.Join(d.Flags.Names(), ",")})
	}
	t.SetStyle(style)
	t.Render()

	if len(m.Extensions) > 0 {
		fmt.Fprintln(w)
		et := table.NewWriter()
		et.SetOutputMirror(w)
		et.AppendHeader(table.Row{"Extension", "Deployment", "Activation", "Round"})
		for _, e := range m.Extensions {
			activation := string(e.Activation)
			if e.ActivatedBy != nil {
				activation += " by " + e.ActivatedBy.String()
			}
			et.AppendRow(table.Row{e.Runtime.String(), e.Deployment.String(), activation, e.Round})
		}
		et.SetStyle(style)
		et.Render()
	}

	dig, err := m.Digest()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\ndigest: %s\n", dig)
	return err
}

func renderTrees(w io.Writer, m *model.ApplicationModel, classpath string) error {
	root := m.Application.Coordinate.Key().String()
	var graphs []*dag.DirectedAcyclicGraph[string]
	switch classpath {
	case ClasspathRuntime:
		graphs = append(graphs, m.RuntimeGraph)
	case ClasspathDeployment:
		graphs = append(graphs, m.DeploymentGraph)
	default:
		graphs = append(graphs, m.RuntimeGraph, m.DeploymentGraph)
	}
	rendered := 0
	for _, g := range graphs {
		if g == nil {
			continue
		}
		if err := renderTree(w, g, root); err != nil {
			return err
		}
		rendered++
	}
	if rendered == 0 {
		return fmt.Errorf("no %s graph available in mode %s", classpath, m.Mode)
	}
	return nil
}

// renderTree prints the graph below root. Vertices reached more than once
// are printed without their children and marked with (*).
func renderTree(w io.Writer, g *dag.DirectedAcyclicGraph[string], root string) error {
	if !g.Contains(root) {
		return fmt.Errorf("vertex for root %s does not exist", root)
	}
	l := list.NewWriter()
	l.SetStyle(list.StyleConnectedRounded)
	seen := map[string]bool{}
	var traverse func(id string)
	traverse = func(id string) {
		v, _ := g.GetVertex(id)
		item := vertexLabel(v)
		if seen[id] {
			l.AppendItem(item + " (*)")
			return
		}
		seen[id] = true
		l.AppendItem(item)
		for _, child := range v.Edges() {
			l.Indent()
			traverse(child)
			l.UnIndent()
		}
	}
	traverse(root)
	l.SetOutputMirror(w)
	l.Render()
	return nil
}

func vertexLabel(v *dag.Vertex[string]) string {
	label := v.ID
	if c, ok := dag.Attribute[artifact.Coordinate](v, model.AttributeCoordinate); ok {
		label = c.String()
	}
	if scope, ok := dag.Attribute[artifact.Scope](v, model.AttributeScope); ok && scope != artifact.ScopeCompile {
		label += " [" + string(scope) + "]"
	}
	if flags, ok := dag.Attribute[model.Flags](v, model.AttributeFlags); ok && flags != 0 {
		label += " " + flags.String()
	}
	return label
}
