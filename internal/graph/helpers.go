package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Helper functions

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

// getTimeFromRecord reads a timestamp value. The write queries use
// timestamp(), which yields milliseconds since epoch; datetime() values come
// back as time.Time.
func getTimeFromRecord(record *neo4j.Record, key string) time.Time {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v
	case int64:
		return millisToTime(v)
	case float64:
		return millisToTime(int64(v))
	}
	return time.Time{}
}

func millisToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
