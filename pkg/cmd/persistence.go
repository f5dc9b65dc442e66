package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/donorflow/donorflow/pkg/persistence"
	"github.com/donorflow/donorflow/pkg/persistence/file"
	"github.com/donorflow/donorflow/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme.
// postgres:// and postgresql:// use PostgreSQL; anything else falls back to
// the file backend, with an optional file:// prefix.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgresql persistence: %w", err)
		}

		return p, nil
	default:
		root := strings.TrimPrefix(databaseURL, "file://")

		return file.NewPersistence(root), nil
	}
}
