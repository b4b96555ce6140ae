package migrations_test

import (
	"context"
	"io"
	"testing"

	"github.com/cimillas/ticket-inventory/internal/testutil"
	"github.com/cimillas/ticket-inventory/migrations"
	"github.com/sirupsen/logrus"
)

func TestApply_IsIdempotent(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)

	if err := migrations.Apply(ctx, pool, log); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	v1, err := migrations.Version(ctx, pool)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v1 < 2 {
		t.Fatalf("expected at least version 2, got %d", v1)
	}

	if err := migrations.Apply(ctx, pool, log); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}

	v2, err := migrations.Version(ctx, pool)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v2 != v1 {
		t.Fatalf("expected version unchanged, got %d vs %d", v2, v1)
	}
}
