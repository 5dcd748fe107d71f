package inst

import (
	"fmt"
	"io"
)

// Graph writes the DAG rooted at Root in graphviz dot form, one node per
// interned Inst so shared subtrees show as shared.
type Graph struct {
	Root    *Inst
	Name    string
	Rankdir string // defaults to "BT"

	visited map[*Inst]bool
}

// WriteDot renders the graph to w.
func (g *Graph) WriteDot(w io.Writer) error {
	if g.Rankdir == "" {
		g.Rankdir = "BT"
	}
	if g.Name == "" {
		g.Name = "inst"
	}
	g.visited = make(map[*Inst]bool)
	if _, err := fmt.Fprintf(w, "digraph %s {\nrankdir = %s;\n", g.Name, g.Rankdir); err != nil {
		return err
	}
	if err := g.writeNode(w, g.Root, true); err != nil {
		return err
	}
	if err := g.writeEdges(w, g.Root, make(map[*Inst]bool)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func (g *Graph) writeNode(w io.Writer, i *Inst, isRoot bool) error {
	if g.visited[i] {
		return nil
	}
	g.visited[i] = true

	if isRoot {
		if _, err := fmt.Fprintf(w, "%s [style=bold];\n", nodeName(i)); err != nil {
			return err
		}
	}
	var err error
	switch i.K {
	case Var:
		_, err = fmt.Fprintf(w, "%s [shape=box,label=\"var %s\"];\n", nodeName(i), i.Name)
	case Const:
		_, err = fmt.Fprintf(w, "%s [label=\"%s\"];\n", nodeName(i), i.Val.String())
	default:
		_, err = fmt.Fprintf(w, "%s [label=%s];\n", nodeName(i), KindName(i.K))
	}
	return err
}

func (g *Graph) writeEdges(w io.Writer, i *Inst, done map[*Inst]bool) error {
	if done[i] {
		return nil
	}
	done[i] = true
	for _, op := range i.Ops {
		if err := g.writeNode(w, op, false); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s -> %s;\n", nodeName(i), nodeName(op)); err != nil {
			return err
		}
		if err := g.writeEdges(w, op, done); err != nil {
			return err
		}
	}
	return nil
}

func nodeName(i *Inst) string {
	return fmt.Sprintf("\"%p\"", i)
}
