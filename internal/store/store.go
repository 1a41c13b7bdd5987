// Package store provides profile persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/tebita/sidekick/internal/domain"
)

// Repository is the persistence collaborator consumed by the coordinator.
// Callers treat every operation as potentially failing and never retry.
type Repository interface {
	// InsertProfile stores one harvested profile snapshot and returns its
	// row id. identityID may be empty for anonymous captures.
	InsertProfile(ctx context.Context, identityID string, p *domain.Profile) (int64, error)

	// FetchProfile returns the most recent profile stored for an identity,
	// or (nil, nil) when none exists.
	FetchProfile(ctx context.Context, identityID string) (*domain.Profile, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
