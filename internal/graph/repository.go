package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"mnemo/pkg/logger"
)

// Repository handles all Neo4j database operations
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	return &Repository{
		driver: driver,
		logger: logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// EnsureConstraints creates the uniqueness constraints the engine relies on:
// one User per username and one Information node per value. Vector indexing
// lives in the vector store, not here.
func (r *Repository) EnsureConstraints(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT user_username IF NOT EXISTS FOR (u:User) REQUIRE u.username IS UNIQUE",
		"CREATE CONSTRAINT information_value IF NOT EXISTS FOR (i:Information) REQUIRE i.value IS UNIQUE",
	}

	for _, constraint := range constraints {
		if _, err := session.Run(ctx, constraint, nil); err != nil {
			// Constraint creation can legitimately fail on older server
			// editions; the merge queries still behave, so warn and continue.
			r.logger.Warn("Constraint creation failed",
				zap.String("constraint", constraint),
				zap.Error(err),
			)
		}
	}

	r.logger.Info("Graph constraints ensured")
	return nil
}
