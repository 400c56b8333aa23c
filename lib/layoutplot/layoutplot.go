// Package layoutplot draws a laid out geograph for debugging: clusters as
// outlines, nodes as filled rectangles and edges as lines between centers.
package layoutplot

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/geo"
)

var (
	nodeFill     = color.RGBA{R: 0xd5, G: 0xe8, B: 0xf7, A: 0xff}
	nodeStroke   = color.RGBA{R: 0x0d, G: 0x32, B: 0xb2, A: 0xff}
	clusterColor = color.RGBA{R: 0x67, G: 0x6c, B: 0x7e, A: 0xff}
	edgeColor    = color.RGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}
)

// flip turns y-down layout coordinates into the y-up plot space.
func flip(p geo.Point) plotter.XY {
	return plotter.XY{X: p.X, Y: -p.Y}
}

func corners(b geo.Box) plotter.XYs {
	return plotter.XYs{
		flip(geo.NewPoint(b.Left(), b.Top())),
		flip(geo.NewPoint(b.Right(), b.Top())),
		flip(geo.NewPoint(b.Right(), b.Bottom())),
		flip(geo.NewPoint(b.Left(), b.Bottom())),
	}
}

// Plot builds a plot of g. Clusters with empty bounds are skipped.
func Plot(g *geograph.Graph) (*plot.Plot, error) {
	p := plot.New()
	p.HideAxes()

	for _, c := range g.Clusters {
		if c.IsRoot() || c.Bounds.IsEmpty() {
			continue
		}
		poly, err := plotter.NewPolygon(corners(c.Bounds))
		if err != nil {
			return nil, fmt.Errorf("failed to plot cluster %q: %w", c.ID, err)
		}
		poly.Color = nil
		poly.LineStyle.Color = clusterColor
		poly.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(poly)
	}

	for _, e := range g.Edges {
		src := e.SourceElement().BoundingBox().Center()
		dst := e.TargetElement().BoundingBox().Center()
		line, err := plotter.NewLine(plotter.XYs{flip(src), flip(dst)})
		if err != nil {
			return nil, fmt.Errorf("failed to plot edge: %w", err)
		}
		line.Color = edgeColor
		p.Add(line)
	}

	if len(g.Nodes) == 0 {
		return p, nil
	}
	labels := plotter.XYLabels{}
	for _, n := range g.Nodes {
		poly, err := plotter.NewPolygon(corners(n.BoundingBox()))
		if err != nil {
			return nil, fmt.Errorf("failed to plot node %q: %w", n.ID, err)
		}
		poly.Color = nodeFill
		poly.LineStyle.Color = nodeStroke
		p.Add(poly)

		labels.XYs = append(labels.XYs, flip(n.Center))
		labels.Labels = append(labels.Labels, n.ID)
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, fmt.Errorf("failed to plot labels: %w", err)
	}
	p.Add(l)
	return p, nil
}

// WriteTo renders g in format, one of the formats plot.Plot.WriterTo knows
// ("png", "svg", "pdf", ...), at 6 by 6 inches.
func WriteTo(g *geograph.Graph, w io.Writer, format string) error {
	p, err := Plot(g)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
