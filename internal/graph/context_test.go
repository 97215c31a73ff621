package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode(t *testing.T) {
	t.Run("adds valid node", func(t *testing.T) {
		ctx := NewContext()

		added, err := ctx.AddNode(Node{ID: "acc-1", Kind: NodeSubject})

		require.NoError(t, err)
		assert.True(t, added)
		assert.True(t, ctx.HasNode("acc-1"))
		assert.Equal(t, 1, ctx.NodeCount())
	})

	t.Run("deduplicates by id", func(t *testing.T) {
		ctx := NewContext()

		_, err := ctx.AddNode(Node{ID: "acc-1", Kind: NodeSubject, Attributes: map[string]string{"label": "first"}})
		require.NoError(t, err)

		added, err := ctx.AddNode(Node{ID: "acc-1", Kind: NodeBank, Attributes: map[string]string{"label": "second"}})
		require.NoError(t, err)
		assert.False(t, added)
		assert.Equal(t, 1, ctx.NodeCount())

		node, ok := ctx.Node("acc-1")
		require.True(t, ok)
		assert.Equal(t, NodeSubject, node.Kind)
		assert.Equal(t, "first", node.Attributes["label"])
	})

	t.Run("rejects empty id", func(t *testing.T) {
		ctx := NewContext()

		_, err := ctx.AddNode(Node{Kind: NodeSubject})

		assert.ErrorIs(t, err, ErrInvalidNode)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		ctx := NewContext()

		_, err := ctx.AddNode(Node{ID: "acc-1", Kind: NodeKind("mystery")})

		assert.ErrorIs(t, err, ErrInvalidNode)
	})
}

func TestNodeOrder(t *testing.T) {
	ctx := NewContext()

	for _, id := range []string{"c", "a", "b"} {
		_, err := ctx.AddNode(Node{ID: id, Kind: NodeSubject})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"c", "a", "b"}, ctx.NodeIDs())
}

func TestParallelEdges(t *testing.T) {
	ctx := NewContext()
	_, err := ctx.AddNode(Node{ID: "a", Kind: NodeSubject})
	require.NoError(t, err)
	_, err = ctx.AddNode(Node{ID: "b", Kind: NodeSubject})
	require.NoError(t, err)

	ctx.AddEdge(Edge{SourceID: "a", TargetID: "b", Kind: EdgeTransaction, Weight: 100, ReferenceID: "tx-1"})
	ctx.AddEdge(Edge{SourceID: "a", TargetID: "b", Kind: EdgeTransaction, Weight: 250, ReferenceID: "tx-2"})

	require.NoError(t, ctx.Validate())
	assert.Equal(t, 2, ctx.EdgeCount())
	assert.Equal(t, "tx-1", ctx.Edges()[0].ReferenceID)
	assert.Equal(t, "tx-2", ctx.Edges()[1].ReferenceID)
}

func TestValidate(t *testing.T) {
	t.Run("accepts empty context", func(t *testing.T) {
		assert.NoError(t, NewContext().Validate())
	})

	t.Run("rejects dangling source", func(t *testing.T) {
		ctx := NewContext()
		_, err := ctx.AddNode(Node{ID: "b", Kind: NodeSubject})
		require.NoError(t, err)

		ctx.AddEdge(Edge{SourceID: "ghost", TargetID: "b", Kind: EdgeTransaction})

		assert.ErrorIs(t, ctx.Validate(), ErrDanglingEdge)
	})

	t.Run("rejects dangling target", func(t *testing.T) {
		ctx := NewContext()
		_, err := ctx.AddNode(Node{ID: "a", Kind: NodeSubject})
		require.NoError(t, err)

		ctx.AddEdge(Edge{SourceID: "a", TargetID: "ghost", Kind: EdgeTransaction})

		assert.ErrorIs(t, ctx.Validate(), ErrDanglingEdge)
	})
}

func TestToElements(t *testing.T) {
	ctx := NewContext()
	_, err := ctx.AddNode(Node{ID: "acc-1", Kind: NodeSubject, Attributes: map[string]string{"label": "Jane Doe", "risk_score": "0.7"}})
	require.NoError(t, err)
	_, err = ctx.AddNode(Node{ID: "First National", Kind: NodeBank, Attributes: map[string]string{"label": "First National"}})
	require.NoError(t, err)
	ctx.AddEdge(Edge{SourceID: "acc-1", TargetID: "First National", Kind: EdgeTransaction, Weight: 99.5, ReferenceID: "tx-9"})

	doc := ctx.ToElements()

	require.Len(t, doc.Elements.Nodes, 2)
	require.Len(t, doc.Elements.Edges, 1)

	first := doc.Elements.Nodes[0].Data
	assert.Equal(t, "acc-1", first["id"])
	assert.Equal(t, string(NodeSubject), first["type"])
	assert.Equal(t, "Jane Doe", first["label"])
	assert.Equal(t, "0.7", first["risk_score"])

	edge := doc.Elements.Edges[0].Data
	assert.Equal(t, "acc-1", edge.Source)
	assert.Equal(t, "First National", edge.Target)
	assert.Equal(t, EdgeTransaction, edge.Type)
	assert.Equal(t, 99.5, edge.Weight)
	assert.Equal(t, "tx-9", edge.ID)
}
