package inmemsession

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veupathdb/strategy-delegate/delegate/session"
)

func TestCreateGraph_IsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	g1, err := s.CreateGraph(ctx, "My Strategy", "graph-1")
	require.NoError(t, err)

	g2, err := s.CreateGraph(ctx, "Renamed", "graph-1")
	require.NoError(t, err)
	assert.Same(t, g1, g2, "creating an existing graph id returns the existing graph unchanged")
	assert.Equal(t, "My Strategy", g2.Name)
}

func TestGetGraph_NotFound_ReturnsTypedError(t *testing.T) {
	s := New()
	_, err := s.GetGraph(context.Background(), "missing")
	require.Error(t, err)
	var notFound session.ErrGraphNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.ID)
}

func TestPutStep_RootDetectionAndHistory(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateGraph(ctx, "g", "graph-1")
	require.NoError(t, err)

	root := &session.Step{ID: "step_1", SearchName: "GenesByKinase"}
	require.NoError(t, s.PutStep(ctx, "graph-1", root))

	combine := &session.Step{ID: "step_2", PrimaryID: "step_1", SecondaryID: "step_0", Operator: "INTERSECT"}
	require.NoError(t, s.PutStep(ctx, "graph-1", combine))

	g, err := s.GetGraph(ctx, "graph-1")
	require.NoError(t, err)
	assert.Contains(t, g.Roots, "step_1")
	assert.NotContains(t, g.Roots, "step_2", "a step with primary/secondary ids is not a root")
	assert.Equal(t, "step_2", g.LastStepID)
	require.Len(t, g.History, 2)
	assert.Equal(t, "put_step", g.History[0].Action)
}

func TestPutStep_UnknownGraph_Errors(t *testing.T) {
	s := New()
	err := s.PutStep(context.Background(), "missing", &session.Step{ID: "step_1"})
	require.Error(t, err)
}

func TestSetMetadata_UpdatesNameAndStrategy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateGraph(ctx, "g", "graph-1")
	require.NoError(t, err)

	require.NoError(t, s.SetMetadata(ctx, "graph-1", "Renamed", "a kinase strategy"))

	g, err := s.GetGraph(ctx, "graph-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", g.Name)
	assert.Equal(t, "a kinase strategy", g.CurrentStrategy)
}

func TestRemoveGraph_ReportsWhetherItExisted(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateGraph(ctx, "g", "graph-1")
	require.NoError(t, err)

	removed, err := s.RemoveGraph(ctx, "graph-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removedAgain, err := s.RemoveGraph(ctx, "graph-1")
	require.NoError(t, err)
	assert.False(t, removedAgain)
}
