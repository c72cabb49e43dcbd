package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/dealdesk/internal/store"
	"github.com/ppiankov/dealdesk/internal/store/postgres"
	"github.com/ppiankov/dealdesk/internal/store/sqlite"
)

// openStore connects to the store named by dsn and makes sure its schema
// exists. The caller closes the store.
func openStore(ctx context.Context, dsn string) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		s, err = sqlite.New(ctx, dsn)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err = postgres.New(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported store DSN %q (expected sqlite:// or postgres://)", dsn)
	}
	if err != nil {
		return nil, err
	}

	if err := s.EnsureSchema(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("prepare schema: %w", err)
	}
	return s, nil
}
