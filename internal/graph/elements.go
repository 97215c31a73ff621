package graph

// ElementsDocument is the export format consumed by force-directed graph
// renderers (cytoscape-style elements).
type ElementsDocument struct {
	Elements Elements `json:"elements"`
}

// Elements groups the exported node and edge elements.
type Elements struct {
	Nodes []NodeElement `json:"nodes"`
	Edges []EdgeElement `json:"edges"`
}

// NodeElement wraps node data under a "data" key. The open attribute map is
// flattened into the data object alongside id, label and type.
type NodeElement struct {
	Data map[string]any `json:"data"`
}

// EdgeElement wraps edge data under a "data" key.
type EdgeElement struct {
	Data EdgeData `json:"data"`
}

// EdgeData is the renderable form of one edge.
type EdgeData struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
	ID     string  `json:"id"`
	Type   string  `json:"type"`
}

// Elements exports the context in renderer format. Nodes appear in
// insertion order, edges in construction order, so the document is stable
// for a fixed context.
func (c *Context) ToElements() ElementsDocument {
	doc := ElementsDocument{
		Elements: Elements{
			Nodes: make([]NodeElement, 0, len(c.order)),
			Edges: make([]EdgeElement, 0, len(c.edges)),
		},
	}

	for _, id := range c.order {
		node := c.nodes[id]
		data := map[string]any{
			"id":    node.ID,
			"type":  string(node.Kind),
			"label": node.ID,
		}
		for key, value := range node.Attributes {
			data[key] = value
		}
		if label, ok := node.Attributes["label"]; ok {
			data["label"] = label
		}
		doc.Elements.Nodes = append(doc.Elements.Nodes, NodeElement{Data: data})
	}

	for _, edge := range c.edges {
		doc.Elements.Edges = append(doc.Elements.Edges, EdgeElement{Data: EdgeData{
			Source: edge.SourceID,
			Target: edge.TargetID,
			Weight: edge.Weight,
			ID:     edge.ReferenceID,
			Type:   edge.Kind,
		}})
	}

	return doc
}
