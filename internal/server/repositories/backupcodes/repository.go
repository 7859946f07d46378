// Package backupcodes persists hashed two-factor recovery codes.
package backupcodes

import "context"

type Repository interface {
	CreateMany(ctx context.Context, userID string, codeHashes []string) error
	// Consume deletes one unused code matching codeHash and reports whether
	// such a code existed.
	Consume(ctx context.Context, userID, codeHash string) (bool, error)
	DeleteForUser(ctx context.Context, userID string) error
	CountForUser(ctx context.Context, userID string) (int, error)
}
