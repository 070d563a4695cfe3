package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"mnemo/internal/memory"
)

// ============================================================================
// Search Operations
// ============================================================================

// DirectMatches returns the user's RELATES_TO edges whose verb or fact value
// is one of the given texts, newest first.
func (r *Repository) DirectMatches(ctx context.Context, username string, texts []string, limit int) ([]memory.RetrievedRecord, error) {
	query := `
		MATCH (u:User {username: $username})-[r:RELATES_TO]->(i:Information)
		WHERE r.value IN $texts OR i.value IN $texts
		RETURN
			elementId(r) as edge_id,
			r.value as relationship,
			i.key as node_key,
			i.value as node_value,
			r.createdAt as created_at,
			r.lifetime as lifetime,
			'' as parent_relationship,
			'' as parent_value
		ORDER BY created_at DESC
		LIMIT $limit
	`

	return r.fetchRecords(ctx, query, map[string]interface{}{
		"username": username,
		"texts":    texts,
		"limit":    clampLimit(limit),
	})
}

// CategoryMatches follows HAS_CATEGORY one hop from the user's directly
// matched facts and returns the category records, each carrying the parent
// fact's verb and value.
func (r *Repository) CategoryMatches(ctx context.Context, username string, texts []string, limit int) ([]memory.RetrievedRecord, error) {
	query := `
		MATCH (u:User {username: $username})-[r:RELATES_TO]->(i:Information)-[h:HAS_CATEGORY]->(j:Information)
		WHERE (r.value IN $texts OR i.value IN $texts) AND NOT j:User
		RETURN
			elementId(h) as edge_id,
			type(h) as relationship,
			j.key as node_key,
			j.value as node_value,
			r.createdAt as created_at,
			r.lifetime as lifetime,
			r.value as parent_relationship,
			i.value as parent_value
		ORDER BY created_at DESC
		LIMIT $limit
	`

	return r.fetchRecords(ctx, query, map[string]interface{}{
		"username": username,
		"texts":    texts,
		"limit":    clampLimit(limit),
	})
}

// EdgeContains returns the user's edges whose relationship verb contains any
// of the given terms, case-insensitive. This is the looser recall pass,
// independent of the vector gate's exact text set.
func (r *Repository) EdgeContains(ctx context.Context, username string, terms []string, limit int) ([]memory.RetrievedRecord, error) {
	query := `
		MATCH (u:User {username: $username})-[r:RELATES_TO]->(i:Information)
		WHERE any(term IN $terms WHERE toLower(r.value) CONTAINS toLower(term))
		RETURN
			elementId(r) as edge_id,
			r.value as relationship,
			i.key as node_key,
			i.value as node_value,
			r.createdAt as created_at,
			r.lifetime as lifetime,
			'' as parent_relationship,
			'' as parent_value
		ORDER BY created_at DESC
		LIMIT $limit
	`

	return r.fetchRecords(ctx, query, map[string]interface{}{
		"username": username,
		"terms":    terms,
		"limit":    clampLimit(limit),
	})
}

func (r *Repository) fetchRecords(ctx context.Context, query string, params map[string]interface{}) ([]memory.RetrievedRecord, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to run search query: %w", err)
	}

	var records []memory.RetrievedRecord
	for result.Next(ctx) {
		record := result.Record()
		records = append(records, memory.RetrievedRecord{
			EdgeID:             getStringFromRecord(record, "edge_id"),
			Relationship:       getStringFromRecord(record, "relationship"),
			Key:                getStringFromRecord(record, "node_key"),
			Value:              getStringFromRecord(record, "node_value"),
			Lifetime:           getStringFromRecord(record, "lifetime"),
			CreatedAt:          getTimeFromRecord(record, "created_at"),
			ParentRelationship: getStringFromRecord(record, "parent_relationship"),
			ParentValue:        getStringFromRecord(record, "parent_value"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}

	return records, nil
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 10
	}
	return limit
}
