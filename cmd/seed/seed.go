package main

import (
	"context"
	"fmt"
	"io"

	"github.com/appdedupe/appdedupe/internal/authz"
	"github.com/appdedupe/appdedupe/internal/bootstrap"
	"github.com/appdedupe/appdedupe/internal/ingest"
	"github.com/appdedupe/appdedupe/internal/models"
	"github.com/appdedupe/appdedupe/internal/users"
)

// sampleUsers are the contributor accounts every seeded environment has.
var sampleUsers = []struct{ name, email string }{
	{"John Doe", "john@example.com"},
	{"Jane Smith", "jane@example.com"},
}

type seeder struct {
	stores   *bootstrap.Stores
	policy   authz.Policy
	admins   []string
	password string
	out      io.Writer
}

func (s *seeder) run(ctx context.Context, upload *ingest.Upload) error {
	if err := s.stores.Users.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	svc := users.NewService(s.stores.Users, s.policy, nil, "")

	var admin *models.User
	for _, email := range s.admins {
		u, err := svc.Register(ctx, "Admin", email, s.password)
		if err != nil {
			return fmt.Errorf("create admin %s: %w", email, err)
		}
		if admin == nil {
			admin = u
		}
		fmt.Fprintf(s.out, "created admin %s\n", u.Email)
	}
	for _, su := range sampleUsers {
		u, err := svc.Register(ctx, su.name, su.email, s.password)
		if err != nil {
			return fmt.Errorf("create user %s: %w", su.email, err)
		}
		fmt.Fprintf(s.out, "created user %s (%s)\n", u.Email, u.Role)
	}

	if upload == nil {
		return nil
	}
	if admin == nil {
		return fmt.Errorf("ADMIN_EMAILS is empty; no account may ingest %s", upload.FileName)
	}
	ing := ingest.NewService(s.stores.Catalog, s.stores.Tx, s.policy, s.stores.Runs, nil)
	run, err := ing.Ingest(ctx, admin, *upload)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", upload.FileName, err)
	}
	fmt.Fprintf(s.out, "ingested %s: %d clusters, %d apps, %d rows skipped\n", upload.FileName, run.Clusters, run.Apps, len(run.Skipped))
	return nil
}
