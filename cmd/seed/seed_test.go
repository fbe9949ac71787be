package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appdedupe/appdedupe/internal/authz"
	"github.com/appdedupe/appdedupe/internal/bootstrap"
	"github.com/appdedupe/appdedupe/internal/catalog/repository"
	"github.com/appdedupe/appdedupe/internal/config"
	"github.com/appdedupe/appdedupe/internal/ingest"
	"github.com/appdedupe/appdedupe/internal/models"
)

func newSeeder(t *testing.T, admins []string) (*seeder, *bytes.Buffer) {
	t.Helper()
	st, err := bootstrap.OpenStores(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	var out bytes.Buffer
	return &seeder{stores: st, policy: authz.NewAllowList(admins), admins: admins, password: "password123", out: &out}, &out
}

func TestSeed_UsersAndCSV(t *testing.T) {
	ctx := context.Background()
	s, out := newSeeder(t, []string{"ops@example.com"})
	require.NoError(t, s.stores.Users.Create(ctx, &models.User{Name: "Stale", Email: "stale@example.com"}))

	err := s.run(ctx, &ingest.Upload{FileName: "apps.csv", Data: []byte("canonical name,variants\nZoom,\"zoom.us, Zoom Client\"\n")})
	require.NoError(t, err)

	n, err := s.stores.Users.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	admin, err := s.stores.Users.GetByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, admin.Role)
	jane, err := s.stores.Users.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, jane.Role)
	stale, err := s.stores.Users.GetByEmail(ctx, "stale@example.com")
	require.NoError(t, err)
	require.Nil(t, stale)

	apps, err := s.stores.Catalog.CountApps(ctx, repository.AppFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 3, apps)
	require.Contains(t, out.String(), "ingested apps.csv: 1 clusters, 3 apps")
}

func TestSeed_CSVNeedsAdmin(t *testing.T) {
	s, _ := newSeeder(t, nil)
	err := s.run(context.Background(), &ingest.Upload{FileName: "apps.csv", Data: []byte("canonical name\nZoom\n")})
	require.Error(t, err)
}
