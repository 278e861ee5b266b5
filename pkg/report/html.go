package report

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/pkg/errors"

	analyzer "github.com/openshift-netlab/netdiag/pkg/analyze"
)

// The page is self contained: inline CSS, no external assets. The one
// exception is the mermaid library pulled from a CDN when a topology diagram
// is present.
const htmlPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} - netdiag report</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #24292f; }
h1 { border-bottom: 2px solid #d0d7de; padding-bottom: 0.4rem; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #d0d7de; padding: 0.4rem 0.8rem; text-align: left; }
th { background: #f6f8fa; }
.critical { color: #cf222e; font-weight: bold; }
.warning { color: #9a6700; }
.info { color: #57606a; }
.rec { background: #ddf4ff; padding: 0.6rem 1rem; margin: 0.4rem 0; border-radius: 4px; }
</style>
{{if .Mermaid}}<script type="module">
import mermaid from 'https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.esm.min.mjs';
mermaid.initialize({ startOnLoad: true });
</script>{{end}}
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Issues}}
<h2>Issues</h2>
<table>
<tr><th>Severity</th><th>Node</th><th>Message</th></tr>
{{range .Issues}}<tr><td class="{{.Severity}}">{{.Severity}}</td><td>{{.Node}}</td><td>{{.Message}}</td></tr>
{{end}}</table>
{{else}}
<p>No issues detected.</p>
{{end}}
{{if .Mermaid}}
<h2>Topology</h2>
<pre class="mermaid">{{.Mermaid}}</pre>
{{end}}
{{if .Recommendations}}
<h2>Recommendations</h2>
{{range .Recommendations}}<div class="rec">{{.}}</div>
{{end}}{{end}}
</body>
</html>
`

var htmlTemplate = template.Must(template.New("report").Parse(htmlPage))

type htmlData struct {
	Title           string
	Issues          []analyzer.Issue
	Recommendations []string
	Mermaid         string
}

// WriteHTML renders a self contained HTML report. Gateway topology results
// additionally get a mermaid diagram of the reference graph.
func WriteHTML(w io.Writer, result *analyzer.Result) error {
	data := htmlData{
		Title:           result.Title,
		Issues:          result.Issues,
		Recommendations: result.Recommendations,
	}
	if topology, ok := result.Detail.(*analyzer.GatewayTopology); ok {
		data.Mermaid = mermaidGraph(topology)
	}
	if err := htmlTemplate.Execute(w, data); err != nil {
		return errors.Wrap(err, "failed to render HTML report")
	}
	return nil
}

// mermaidGraph flattens the topology into mermaid's graph syntax. Node ids
// must be bare words, so names are mangled and the readable form goes in the
// label.
func mermaidGraph(topology *analyzer.GatewayTopology) string {
	var b strings.Builder
	b.WriteString("graph LR\n")
	for _, node := range topology.Nodes {
		fmt.Fprintf(&b, "  %s[\"%s %s\"]\n", mermaidID(node), node.Kind, node.Name)
	}
	for _, edge := range topology.Edges {
		if edge.Label != "" {
			fmt.Fprintf(&b, "  %s -->|%s| %s\n", mermaidID(edge.From), edge.Label, mermaidID(edge.To))
			continue
		}
		fmt.Fprintf(&b, "  %s --> %s\n", mermaidID(edge.From), mermaidID(edge.To))
	}
	return b.String()
}

func mermaidID(node analyzer.TopologyNode) string {
	replacer := strings.NewReplacer("/", "_", "-", "_", ".", "_")
	return strings.ToLower(node.Kind) + "_" + replacer.Replace(node.Name)
}
