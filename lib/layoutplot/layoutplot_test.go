package layoutplot_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/geo"
	"oss.terrastruct.com/d2incremental/lib/layoutplot"
)

func TestWriteTo(t *testing.T) {
	t.Parallel()

	g := geograph.NewGraph()
	c := g.AddCluster("c", nil)
	a := g.AddNode("a", geo.NewPoint(0, 0), 20, 10, c)
	b := g.AddNode("b", geo.NewPoint(60, 30), 20, 10, nil)
	g.AddEdge(a, b)
	c.CalculateBoundsFromChildren(5)

	p, err := layoutplot.Plot(g)
	require.NoError(t, err)
	assert.NotNil(t, p)

	var buf bytes.Buffer
	require.NoError(t, layoutplot.WriteTo(g, &buf, "svg"))
	assert.Contains(t, buf.String(), "<svg")

	buf.Reset()
	require.NoError(t, layoutplot.WriteTo(g, &buf, "png"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	assert.Error(t, layoutplot.WriteTo(g, &buf, "bmp?"))
}

func TestPlotEmptyGraph(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, layoutplot.WriteTo(geograph.NewGraph(), &buf, "svg"))
	assert.NotZero(t, buf.Len())
}
