package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// categoryKey marks Information nodes that only exist as category markers
const categoryKey = "Category"

// ============================================================================
// Fact Operations
// ============================================================================

// UpsertFact merges a fact node by value and returns its element id. Fact
// values are globally unique; when the node already existed as a pure
// category marker and the incoming fact gives it a real key, the key is
// overwritten.
func (r *Repository) UpsertFact(ctx context.Context, key, value string) (string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (i:Information {value: $value})
		ON CREATE SET i.key = $key, i.createdAt = timestamp(), i.children = []
		ON MATCH SET i.updatedAt = timestamp(),
			i.key = CASE
				WHEN i.key = $categoryKey AND $key <> $categoryKey THEN $key
				ELSE i.key
			END
		RETURN elementId(i) as node_id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"key":         key,
		"value":       value,
		"categoryKey": categoryKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert fact node %q: %w", value, err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read fact node id for %q: %w", value, err)
	}

	nodeID := getStringFromRecord(record, "node_id")
	if nodeID == "" {
		return "", fmt.Errorf("fact node upsert returned no id for %q", value)
	}

	r.logger.Debug("Fact node upserted",
		zap.String("key", key),
		zap.String("value", value),
	)
	return nodeID, nil
}

// UpsertRelatesEdge merges the RELATES_TO edge from a user to a fact node.
// The relationship verb is part of the edge identity: the same user and fact
// related through two different verbs yields two edges. Re-saving the same
// triple updates lifetime and timestamp instead of duplicating.
func (r *Repository) UpsertRelatesEdge(ctx context.Context, username, factID, relationship, lifetime string) (string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {username: $username})
		MATCH (i:Information) WHERE elementId(i) = $factID
		MERGE (u)-[r:RELATES_TO {value: $relationship}]->(i)
		ON CREATE SET r.lifetime = $lifetime, r.createdAt = timestamp()
		ON MATCH SET r.lifetime = $lifetime, r.updatedAt = timestamp()
		RETURN elementId(r) as edge_id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"username":     username,
		"factID":       factID,
		"relationship": relationship,
		"lifetime":     lifetime,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert relates edge %q: %w", relationship, err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read relates edge id for %q: %w", relationship, err)
	}

	edgeID := getStringFromRecord(record, "edge_id")
	if edgeID == "" {
		return "", fmt.Errorf("relates edge upsert returned no id for %q", relationship)
	}

	return edgeID, nil
}

// UpsertCategory merges a category node by value. Category nodes share the
// Information label and the value uniqueness constraint, with the reserved
// key marking them as markers.
func (r *Repository) UpsertCategory(ctx context.Context, name string) (string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (k:Information {value: $name})
		ON CREATE SET k.key = $categoryKey, k.createdAt = timestamp(), k.children = []
		ON MATCH SET k.updatedAt = timestamp()
		RETURN elementId(k) as node_id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"name":        name,
		"categoryKey": categoryKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert category %q: %w", name, err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read category id for %q: %w", name, err)
	}

	nodeID := getStringFromRecord(record, "node_id")
	if nodeID == "" {
		return "", fmt.Errorf("category upsert returned no id for %q", name)
	}

	return nodeID, nil
}

// LinkCategory merges the HAS_CATEGORY edge from a fact node to its category
func (r *Repository) LinkCategory(ctx context.Context, factID, categoryID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (i:Information) WHERE elementId(i) = $factID
		MATCH (k:Information) WHERE elementId(k) = $categoryID
		MERGE (i)-[h:HAS_CATEGORY]->(k)
		ON CREATE SET h.createdAt = timestamp()
		ON MATCH SET h.updatedAt = timestamp()
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"factID":     factID,
		"categoryID": categoryID,
	})
	if err != nil {
		return fmt.Errorf("failed to link category: %w", err)
	}

	return nil
}
