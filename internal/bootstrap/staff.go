// Package bootstrap holds one-time initialization run at startup.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// StaffGranter grants the staff flag to accounts by username
type StaffGranter interface {
	GrantStaff(ctx context.Context, usernames []string) (int64, error)
}

// EnsureStaff grants staff to every listed username that exists and is not staff yet.
// It is idempotent, safe to call on every startup.
//
// Usernames that do not exist are ignored; an empty list is a no-op.
func EnsureStaff(ctx context.Context, repo StaffGranter, usernames []string, logger *zap.Logger) error {
	if len(usernames) == 0 {
		logger.Info("bootstrap: no staff usernames configured, skipping staff seeding")
		return nil
	}

	granted, err := repo.GrantStaff(ctx, usernames)
	if err != nil {
		return fmt.Errorf("failed to grant staff: %w", err)
	}

	logger.Info("bootstrap: staff seeding completed",
		zap.Strings("usernames", usernames),
		zap.Int64("granted", granted))
	return nil
}
