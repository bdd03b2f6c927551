package clickhouse_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/storage"
	chstore "funding-market-lab/internal/storage/clickhouse"
	"funding-market-lab/internal/storage/migrations"
)

// setupTestDB creates a ClickHouse container, applies the embedded migrations
// and returns a connection to the migrated database. Returns a cleanup
// function that must be called when done.
func setupTestDB(t *testing.T) (*chstore.Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/analytics_test", host, port.Port())

	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

func ptr[T any](v T) *T {
	return &v
}

func TestReturnStore_InsertGenerationAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := chstore.NewReturnStore(conn)

	points := []*domain.ReturnPoint{
		{Symbol: "BTCUSDT", TimestampMs: 1000, LogReturn: 0.001, RollingVolatility: nil},
		{Symbol: "BTCUSDT", TimestampMs: 2000, LogReturn: -0.002, RollingVolatility: ptr(0.0015)},
	}

	require.NoError(t, store.InsertGeneration(ctx, 1, points))

	result, err := store.GetByTimeRange(ctx, "BTCUSDT", 0, 5000)
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.Equal(t, int64(1000), result[0].TimestampMs)
	assert.InDelta(t, 0.001, result[0].LogReturn, 1e-12)
	assert.Nil(t, result[0].RollingVolatility)
	require.NotNil(t, result[1].RollingVolatility)
	assert.InDelta(t, 0.0015, *result[1].RollingVolatility, 1e-12)
}

func TestReturnStore_ReadsNewestGenerationOnly(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := chstore.NewReturnStore(conn)

	gen1 := []*domain.ReturnPoint{
		{Symbol: "BTCUSDT", TimestampMs: 1000, LogReturn: 0.001},
	}
	gen2 := []*domain.ReturnPoint{
		{Symbol: "BTCUSDT", TimestampMs: 1000, LogReturn: 0.009},
		{Symbol: "BTCUSDT", TimestampMs: 2000, LogReturn: 0.010},
	}

	require.NoError(t, store.InsertGeneration(ctx, 1, gen1))
	require.NoError(t, store.InsertGeneration(ctx, 2, gen2))

	result, err := store.GetByTimeRange(ctx, "BTCUSDT", 0, 5000)
	require.NoError(t, err)

	// Only generation 2 rows are visible
	require.Len(t, result, 2)
	assert.InDelta(t, 0.009, result[0].LogReturn, 1e-12)

	latest, err := store.LatestGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest)
}

func TestReturnStore_LatestGenerationEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := chstore.NewReturnStore(conn)

	_, err := store.LatestGeneration(ctx)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func TestMarkoutStore_InsertGenerationAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := chstore.NewMarkoutStore(conn)

	records := []*domain.MarkoutRecord{
		{Symbol: "BTCUSDT", EventTimestampMs: 1000, HorizonMinutes: 60, MarkoutSum: ptr(0.004), SampleCount: 60},
		{Symbol: "BTCUSDT", EventTimestampMs: 2000, HorizonMinutes: 60, MarkoutSum: nil, SampleCount: 0},
	}

	require.NoError(t, store.InsertGeneration(ctx, 1, records))

	result, err := store.GetByTimeRange(ctx, 0, 5000)
	require.NoError(t, err)

	require.Len(t, result, 2)
	require.NotNil(t, result[0].MarkoutSum)
	assert.InDelta(t, 0.004, *result[0].MarkoutSum, 1e-12)
	assert.Equal(t, 60, result[0].SampleCount)
	assert.Nil(t, result[1].MarkoutSum)
	assert.Equal(t, 0, result[1].SampleCount)
}
