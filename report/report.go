// Package report renders a compiled ASLDoc as a Graphviz dot graph or
// an HTML page for human review, the way the teacher's tools package
// renders a compiled Spec.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aslcompile/aslc/core"
	md "github.com/russross/blackfriday/v2"
)

// Dot writes a Graphviz dot rendering of doc to w. highlight, if
// non-empty, is drawn in red -- the state a trace is currently
// sitting at, mirroring the fromNode/toNode highlighting the teacher's
// Dot offers for a running machine.
func Dot(doc *core.ASLDoc, w io.Writer, highlight string) error {
	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, "  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]\n")
	fmt.Fprintf(w, "  node [shape=\"record\" style=\"rounded,filled\"]\n")
	fmt.Fprintf(w, "  edge [fontsize = \"12\"]\n")

	for _, name := range sortedNames(doc.States) {
		n := doc.States[name]
		fillcolor := typeColor(n.Type)
		color := "black"
		style := "filled"
		if name == highlight {
			color = "red"
			fillcolor = "#f98b8b"
		}
		if name == doc.StartAt {
			style += ",bold"
		}
		label := name
		if n.Comment != "" {
			label += "<BR/><FONT POINT-SIZE='8'>" + escapeHTML(n.Comment) + "</FONT>"
		}
		fmt.Fprintf(w, "  %q [shape=\"record\", style=\"%s\", color=\"%s\", fillcolor=\"%s\", label=<%s> ]\n",
			name, style, color, fillcolor, label)
	}

	for _, name := range sortedNames(doc.States) {
		n := doc.States[name]
		for i, ch := range n.Choices {
			edge(w, name, ch.Next, fmt.Sprintf("%d", i+1))
		}
		if n.Default != "" {
			edge(w, name, n.Default, "default")
		}
		if n.Next != "" {
			edge(w, name, n.Next, "")
		}
		for _, ct := range n.Catch {
			edge(w, name, ct.Next, "catch: "+strings.Join(ct.ErrorEquals, ","))
		}
	}

	fmt.Fprintf(w, "}\n")
	return nil
}

func edge(w io.Writer, from, to, label string) {
	if to == "" {
		return
	}
	fmt.Fprintf(w, "  %q -> %q [ label = %q ]\n", from, to, label)
}

func typeColor(t string) string {
	switch t {
	case "Task":
		return "#2d93ad"
	case "Choice":
		return "#52aa5e"
	case "Fail":
		return "#f98b8b"
	case "Map", "Parallel":
		return "#e8c547"
	default:
		return "#99ddc8"
	}
}

func sortedNames(states map[string]*core.NodeState) []string {
	names := make([]string, 0, len(states))
	for n := range states {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// HTML renders a human-readable page describing doc: one row per
// state with its resource/parameters/transitions, plus trace,  when
// non-nil, rendered as a markdown list of the compiler's notable
// lowering decisions.
func HTML(doc *core.ASLDoc, trace []string, out io.Writer) error {
	f := func(format string, args ...interface{}) { fmt.Fprintf(out, format+"\n", args...) }

	f(`<div class="aslDoc"><table>`)
	for _, name := range sortedNames(doc.States) {
		n := doc.States[name]
		f(`<tr class="state"><td><span id=%q class="stateName">%s</span></td><td>`, name, name)
		f(`<div class="stateType">%s</div>`, n.Type)
		if n.Resource != "" {
			f(`<div class="resource"><code>%s</code></div>`, n.Resource)
		}
		if len(n.Parameters) > 0 {
			f(`<div class="params"><pre>%s</pre></div>`, fmt.Sprintf("%v", n.Parameters))
		}
		if n.Next != "" {
			f(`<div>next: <a href="#%s"><code>%s</code></a></div>`, n.Next, n.Next)
		}
		for _, ct := range n.Catch {
			f(`<div>catch %s &rarr; <a href="#%s"><code>%s</code></a></div>`, strings.Join(ct.ErrorEquals, ","), ct.Next, ct.Next)
		}
		f(`</td></tr>`)
	}
	f(`</table></div>`)

	if len(trace) > 0 {
		f(`<div class="trace doc">%s</div>`, md.Run([]byte("- "+strings.Join(trace, "\n- "))))
	}
	return nil
}
