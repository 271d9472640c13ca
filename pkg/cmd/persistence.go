package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/engageflow/pkg/persistence"
	"github.com/dukex/engageflow/pkg/persistence/file"
	"github.com/dukex/engageflow/pkg/persistence/postgresql"
	"github.com/dukex/engageflow/pkg/persistence/redis"
)

var ErrUnsupportedPersistence = errors.New("unsupported persistence provider")

// NewPersistence opens the store named by databaseURL (file://<dir>, a bare
// directory, or postgres://...). When continuationURL is a redis:// URL,
// suspended runs are kept in Redis instead of the primary store.
//
//nolint:ireturn // persistence.Persistence is the shared contract
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL, continuationURL string) (persistence.Persistence, error) {
	var (
		p   persistence.Persistence
		err error
	)

	switch provider := parseProvider(databaseURL); provider {
	case "file":
		p = file.NewPersistence(databaseURL)
	case "postgres", "postgresql":
		p, err = postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPersistence, provider)
	}

	if continuationURL == "" {
		return p, nil
	}

	switch provider := parseProvider(continuationURL); provider {
	case "redis", "rediss":
		store, err := redis.NewContinuationRepository(ctx, logger, continuationURL)
		if err != nil {
			_ = p.Close(ctx)

			return nil, err
		}

		logger.InfoContext(ctx, "Using redis continuation store")

		return persistence.WithContinuationStore(p, store), nil
	default:
		_ = p.Close(ctx)

		return nil, fmt.Errorf("%w: continuation store %s", ErrUnsupportedPersistence, provider)
	}
}

func parseProvider(url string) string {
	scheme, _, found := strings.Cut(url, "://")
	if !found {
		return "file"
	}

	return strings.ToLower(scheme)
}
