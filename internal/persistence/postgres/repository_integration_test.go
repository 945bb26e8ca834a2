//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/deeds/internal/domain"
)

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("deeds"),
		postgrescontainer.WithUsername("deeds"),
		postgrescontainer.WithPassword("deeds"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	repo := NewRepository(pool)
	tenantID := uuid.NewString()
	userID := uuid.NewString()

	dailyCap := 10.0
	deed := domain.Deed{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		UserID:        userID,
		Name:          "Stretch",
		Polarity:      domain.PolarityPositive,
		UnitType:      domain.UnitDuration,
		UnitLabel:     "minutes",
		PointsPerUnit: 5,
		DailyCap:      &dailyCap,
		ShowOnStats:   true,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.CreateDeed(ctx, deed))

	stored, err := repo.GetDeed(ctx, tenantID, userID, deed.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, deed.Name, stored.Name)
	require.NotNil(t, stored.DailyCap)
	require.Equal(t, dailyCap, *stored.DailyCap)

	// Entries come back ordered by timestamp regardless of insert order.
	base := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		entry := domain.Entry{
			ID:        uuid.NewString(),
			DeedID:    deed.ID,
			Timestamp: base.Add(offset),
			Amount:    1,
			Points:    5,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, repo.InsertEntry(ctx, tenantID, userID, entry))
	}

	entries, err := repo.QueryEntries(ctx, tenantID, userID, domain.EntryQuery{DeedID: deed.ID})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		require.False(t, entries[i].Timestamp.Before(entries[i-1].Timestamp))
	}

	from := base.Add(30 * time.Minute)
	ranged, err := repo.QueryEntries(ctx, tenantID, userID, domain.EntryQuery{DeedID: deed.ID, From: &from})
	require.NoError(t, err)
	require.Len(t, ranged, 2)

	page, next, err := repo.ListEntriesPage(ctx, tenantID, userID, domain.EntryQuery{}, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	rest, _, err := repo.ListEntriesPage(ctx, tenantID, userID, domain.EntryQuery{}, next, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	// Cross-tenant reads must come back empty under RLS.
	otherTenant := uuid.NewString()
	crossTenant, err := repo.GetDeed(ctx, otherTenant, userID, deed.ID)
	require.NoError(t, err)
	require.Nil(t, crossTenant, "RLS should prevent cross-tenant access")

	prefs := domain.Preferences{CutoffHour: 6, UpdatedAt: time.Now().UTC()}
	require.NoError(t, repo.UpsertPreferences(ctx, tenantID, userID, prefs))
	storedPrefs, err := repo.GetPreferences(ctx, tenantID, userID)
	require.NoError(t, err)
	require.NotNil(t, storedPrefs)
	require.Equal(t, 6, storedPrefs.CutoffHour)

	prefs.CutoffHour = 3
	require.NoError(t, repo.UpsertPreferences(ctx, tenantID, userID, prefs))
	storedPrefs, err = repo.GetPreferences(ctx, tenantID, userID)
	require.NoError(t, err)
	require.Equal(t, 3, storedPrefs.CutoffHour)

	// Two-step cascade: entries first, then the deed.
	require.NoError(t, repo.DeleteDeedEntries(ctx, tenantID, userID, deed.ID))
	deleted, err := repo.DeleteDeed(ctx, tenantID, userID, deed.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	remaining, err := repo.QueryEntries(ctx, tenantID, userID, domain.EntryQuery{DeedID: deed.ID})
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
