package geograph

import (
	"encoding/json"
	"fmt"

	"oss.terrastruct.com/d2incremental/lib/geo"
	"oss.terrastruct.com/d2incremental/lib/go2"
)

// The JSON form is flat: clusters and nodes name their parent by ID and edges
// name their ends by node or cluster ID. An empty parent is the root.
type jsonGraph struct {
	Clusters []jsonCluster `json:"clusters,omitempty"`
	Nodes    []jsonNode    `json:"nodes"`
	Edges    []jsonEdge    `json:"edges,omitempty"`
}

type jsonCluster struct {
	ID     string   `json:"id"`
	Parent string   `json:"parent,omitempty"`
	Bounds *geo.Box `json:"bounds,omitempty"`
	Fixed  bool     `json:"fixed,omitempty"`
}

type jsonNode struct {
	ID     string    `json:"id"`
	Parent string    `json:"parent,omitempty"`
	Center geo.Point `json:"center"`
	Width  float64   `json:"width"`
	Height float64   `json:"height"`
}

type jsonEdge struct {
	Source     string     `json:"source"`
	Target     string     `json:"target"`
	Length     float64    `json:"length,omitempty"`
	SourcePort *geo.Point `json:"sourcePort,omitempty"`
	TargetPort *geo.Point `json:"targetPort,omitempty"`
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	jg := jsonGraph{
		Nodes: make([]jsonNode, 0, len(g.Nodes)),
	}
	for _, c := range g.Clusters[1:] {
		jc := jsonCluster{
			ID:     c.ID,
			Parent: c.Parent.ID,
			Fixed:  c.Boundary.GenerateFixedConstraintsDefault,
		}
		if !c.Bounds.IsEmpty() {
			jc.Bounds = go2.Pointer(c.Bounds)
		}
		jg.Clusters = append(jg.Clusters, jc)
	}
	for _, n := range g.Nodes {
		jg.Nodes = append(jg.Nodes, jsonNode{
			ID:     n.ID,
			Parent: n.Parent.ID,
			Center: n.Center,
			Width:  n.Width,
			Height: n.Height,
		})
	}
	for _, e := range g.Edges {
		jg.Edges = append(jg.Edges, jsonEdge{
			Source:     elementID(e.SourceElement()),
			Target:     elementID(e.TargetElement()),
			Length:     e.Length,
			SourcePort: e.SourcePort,
			TargetPort: e.TargetPort,
		})
	}
	return json.Marshal(jg)
}

func elementID(el Element) string {
	switch v := el.(type) {
	case *Node:
		return v.ID
	case *Cluster:
		return v.ID
	}
	return ""
}

// UnmarshalJSON replaces g with the decoded graph. Clusters must be listed
// after their parent.
func (g *Graph) UnmarshalJSON(b []byte) error {
	var jg jsonGraph
	err := json.Unmarshal(b, &jg)
	if err != nil {
		return err
	}

	ng := NewGraph()
	clusters := map[string]*Cluster{"": ng.Root()}
	nodes := make(map[string]*Node, len(jg.Nodes))
	parent := func(id string) (*Cluster, error) {
		c, ok := clusters[id]
		if !ok {
			return nil, fmt.Errorf("unknown parent cluster %q", id)
		}
		return c, nil
	}

	for _, jc := range jg.Clusters {
		if jc.ID == "" {
			return fmt.Errorf("cluster without id")
		}
		if _, ok := clusters[jc.ID]; ok {
			return fmt.Errorf("duplicate cluster %q", jc.ID)
		}
		p, err := parent(jc.Parent)
		if err != nil {
			return fmt.Errorf("cluster %q: %w", jc.ID, err)
		}
		c := ng.AddCluster(jc.ID, p)
		c.Boundary.GenerateFixedConstraintsDefault = jc.Fixed
		c.Boundary.GenerateFixedConstraints = jc.Fixed
		if jc.Bounds != nil {
			c.Bounds = *jc.Bounds
			c.Boundary.Rect = *jc.Bounds
		}
		clusters[jc.ID] = c
	}

	for _, jn := range jg.Nodes {
		if _, ok := nodes[jn.ID]; ok {
			return fmt.Errorf("duplicate node %q", jn.ID)
		}
		if _, ok := clusters[jn.ID]; ok && jn.ID != "" {
			return fmt.Errorf("node %q shares its id with a cluster", jn.ID)
		}
		if jn.Width <= 0 || jn.Height <= 0 {
			return fmt.Errorf("node %q must have a positive size", jn.ID)
		}
		p, err := parent(jn.Parent)
		if err != nil {
			return fmt.Errorf("node %q: %w", jn.ID, err)
		}
		nodes[jn.ID] = ng.AddNode(jn.ID, jn.Center, jn.Width, jn.Height, p)
	}

	lookup := func(id string) (Element, error) {
		if n, ok := nodes[id]; ok {
			return n, nil
		}
		if c, ok := clusters[id]; ok && id != "" {
			return c, nil
		}
		return nil, fmt.Errorf("unknown edge end %q", id)
	}
	for i, je := range jg.Edges {
		src, err := lookup(je.Source)
		if err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
		dst, err := lookup(je.Target)
		if err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
		e, err := ng.AddClusterEdge(src, dst)
		if err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
		e.Length = je.Length
		e.SourcePort = je.SourcePort
		e.TargetPort = je.TargetPort
	}

	*g = *ng
	return nil
}
