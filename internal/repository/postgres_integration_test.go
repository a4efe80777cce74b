//go:build integration

package repository_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/UnknownOlympus/trafficmodeler/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestRepositoryIntegration(t *testing.T) {
	ctx := t.Context()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("traffic"),
		postgres.WithUsername("traffic"),
		postgres.WithPassword("traffic"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "failed to start PostgreSQL container")

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := repository.NewDatabase(ctx, host, port.Port(), "traffic", "traffic", "traffic")
	require.NoError(t, err)
	defer pool.Close()

	repo := repository.NewRepository(pool, slog.Default())
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx), "schema creation is idempotent")

	older := sampleRecord()
	newer := sampleRecord()
	newer.ID = uuid.New()
	newer.Origin = "Delhi"
	newer.RiskLevel = nil
	newer.RiskScore = nil
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	require.NoError(t, repo.SavePlan(ctx, older))
	require.NoError(t, repo.SavePlan(ctx, newer))
	require.NoError(t, repo.SavePlan(ctx, newer), "saving twice is a no-op")

	plans, err := repo.RecentPlans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, newer.ID, plans[0].ID)
	assert.Nil(t, plans[0].RiskLevel)
	assert.Equal(t, older.ID, plans[1].ID)
	require.NotNil(t, plans[1].RiskLevel)
	assert.Equal(t, "Medium", *plans[1].RiskLevel)
	assert.True(t, older.CreatedAt.Equal(plans[1].CreatedAt))

	plans, err = repo.RecentPlans(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	require.NoError(t, repo.Ping(ctx))
}
