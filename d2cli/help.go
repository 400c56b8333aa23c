package d2cli

import (
	"fmt"
	"path/filepath"

	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/d2incremental/lib/version"
)

func help(ms *xmain.State) {
	fmt.Fprintf(ms.Stdout, `%[1]s %[2]s
Usage:
  %[1]s [--opts=opts.json] [--fil-...] graph.json [out.json | out.svg | out.png | out.pdf]
  %[1]s version

%[1]s runs the incremental force directed layout on graph.json and writes the
laid out graph as JSON, or plots it to SVG, PNG or PDF.
It defaults to graph.svg if an output path is not provided.

Use - to have %[1]s read from stdin or write to stdout. Stdout receives JSON
unless --stdout-format says otherwise.

The input lists clusters, nodes and edges:
  {
    "clusters": [{"id": "c", "parent": "", "fixed": false}],
    "nodes": [{"id": "a", "parent": "c", "center": {"x": 0, "y": 0}, "width": 40, "height": 20}],
    "edges": [{"source": "a", "target": "c", "length": 0}]
  }

Flags:
%[3]s
`, filepath.Base(ms.Name), version.Version, ms.Opts.Defaults())
}
