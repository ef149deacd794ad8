package ffnet

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/awalterschulze/gographviz"
)

type dotLayer struct {
	Name       string
	Weight     string
	Bias       string
	Activation string
}

// ToDot renders the layer structure of an initialized net as a graphviz
// document. Uninitialized nets render as the empty string.
func (n *Net) ToDot() string {
	if n.g == nil {
		return ""
	}
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		panic(err)
	}
	g.SetDir(true)

	var buf bytes.Buffer
	add := func(id string, l dotLayer) {
		dotTmpl.Execute(&buf, l)
		attrs := map[string]string{
			"fontname": "Monaco",
			"shape":    "none",
			"label":    buf.String(),
		}
		g.AddNode("G", id, attrs)
		buf.Reset()
	}

	add("X", dotLayer{
		Name:       fmt.Sprintf("X %v", n.x.Shape()),
		Weight:     "-",
		Bias:       "-",
		Activation: "-",
	})
	prev := "X"
	for i := range n.Hidden {
		id := fmt.Sprintf("Hidden%d", i)
		add(id, dotLayer{
			Name:       id,
			Weight:     fmt.Sprintf("%v", n.model[2*i].Shape()),
			Bias:       fmt.Sprintf("%v", n.model[2*i+1].Shape()),
			Activation: "tanh",
		})
		g.AddEdge(prev, id, true, nil)
		prev = id
	}
	h := len(n.Hidden)
	add("Mean", dotLayer{
		Name:       "Mean",
		Weight:     fmt.Sprintf("%v", n.model[2*h].Shape()),
		Bias:       fmt.Sprintf("%v", n.model[2*h+1].Shape()),
		Activation: "-",
	})
	g.AddEdge(prev, "Mean", true, nil)

	add("LogVariance", dotLayer{
		Name:       "LogVariance",
		Weight:     "-",
		Bias:       fmt.Sprintf("%v", n.model[2*h+2].Shape()),
		Activation: "-",
	})
	add("Output", dotLayer{Name: "Output", Weight: "-", Bias: "-", Activation: "-"})
	g.AddEdge("Mean", "Output", true, nil)
	g.AddEdge("LogVariance", "Output", true, nil)

	return g.String()
}

const dotTmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD>Layer</TD><TD>{{.Name}}</TD></TR>
<TR><TD>Weight</TD><TD>{{.Weight}}</TD></TR>
<TR><TD>Bias</TD><TD>{{.Bias}}</TD></TR>
<TR><TD>Activation</TD><TD>{{.Activation}}</TD></TR>
</TABLE>
>
`

var dotTmpl *template.Template

func init() {
	dotTmpl = template.Must(template.New("layer").Parse(dotTmplRaw))
}
