package mongosession

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/veupathdb/strategy-delegate/delegate/session"
)

var (
	testMongoClient    *mongo.Client
	testMongoContainer testcontainers.Container
	skipMongoTests     bool
)

func setupMongoDB() {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
			Tmpfs:        map[string]string{"/data/db": "rw"},
		}
		testMongoContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if containerErr != nil {
		skipMongoTests = true
		return
	}

	host, err := testMongoContainer.Host(ctx)
	if err != nil {
		skipMongoTests = true
		return
	}
	port, err := testMongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		skipMongoTests = true
		return
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	testMongoClient, err = mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		skipMongoTests = true
		return
	}
	if err := testMongoClient.Ping(ctx, nil); err != nil {
		skipMongoTests = true
		return
	}
}

func getStore(t *testing.T) *Store {
	t.Helper()
	if testMongoClient == nil && !skipMongoTests {
		setupMongoDB()
	}
	if skipMongoTests {
		t.Skip("docker not available, skipping mongosession test")
	}
	collection := testMongoClient.Database("strategy_delegate_test").Collection(t.Name())
	require.NoError(t, collection.Drop(context.Background()))
	return New(collection)
}

func TestCreateGraph_IsIdempotent(t *testing.T) {
	s := getStore(t)
	ctx := context.Background()

	g1, err := s.CreateGraph(ctx, "My Strategy", "graph-1")
	require.NoError(t, err)

	g2, err := s.CreateGraph(ctx, "Renamed", "graph-1")
	require.NoError(t, err)
	assert.Equal(t, g1.Name, g2.Name)
}

func TestGetGraph_NotFound(t *testing.T) {
	s := getStore(t)
	_, err := s.GetGraph(context.Background(), "missing")
	require.Error(t, err)
	var notFound session.ErrGraphNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestPutStepAndGetGraph_RoundTrips(t *testing.T) {
	s := getStore(t)
	ctx := context.Background()
	_, err := s.CreateGraph(ctx, "g", "graph-1")
	require.NoError(t, err)

	step := &session.Step{ID: "step_1", SearchName: "GenesByKinase", Parameters: map[string]any{"organism": "Pfalciparum"}}
	require.NoError(t, s.PutStep(ctx, "graph-1", step))

	g, err := s.GetGraph(ctx, "graph-1")
	require.NoError(t, err)
	require.Contains(t, g.Steps, "step_1")
	assert.Equal(t, "GenesByKinase", g.Steps["step_1"].SearchName)
	assert.Equal(t, "step_1", g.LastStepID)
	require.Len(t, g.History, 1)
}

func TestSetMetadata_Persists(t *testing.T) {
	s := getStore(t)
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
	s := getStore(t)
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
