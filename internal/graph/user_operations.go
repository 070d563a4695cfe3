package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// ============================================================================
// User Operations
// ============================================================================

// UserExists reports whether a user node exists
func (r *Repository) UserExists(ctx context.Context, username string) (bool, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		"MATCH (u:User {username: $username}) RETURN u.username",
		map[string]interface{}{"username": username},
	)
	if err != nil {
		return false, fmt.Errorf("failed to check user %q: %w", username, err)
	}

	if result.Next(ctx) {
		return true, nil
	}
	return false, result.Err()
}

// UpsertUser creates or updates a user node
func (r *Repository) UpsertUser(ctx context.Context, username string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (u:User {username: $username})
		ON CREATE SET u.createdAt = timestamp()
		ON MATCH SET u.updatedAt = timestamp()
		RETURN u.username as username
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"username": username,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert user %q: %w", username, err)
	}
	if _, err := result.Single(ctx); err != nil {
		return fmt.Errorf("failed to verify user upsert for %q: %w", username, err)
	}

	r.logger.Info("User node upserted", zap.String("username", username))
	return nil
}
