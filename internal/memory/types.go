package memory

import "time"

// DefaultLifetime is assumed when a fact does not carry one
const DefaultLifetime = "permanent"

// Fact is one extracted statement about a user: a category hypernym (key), a
// singular noun/adjective (value), a first-person verb (relationship) and a
// validity duration. Facts are produced by the upstream extractor and are
// immutable here.
type Fact struct {
	Key          string `json:"key"`
	Value        string `json:"value"`
	Relationship string `json:"relationship"`
	Lifetime     string `json:"lifetime"`
}

// MissingField returns the name of the first missing required field, or ""
// when the fact is complete. Lifetime is optional.
func (f Fact) MissingField() string {
	switch {
	case f.Key == "":
		return "key"
	case f.Value == "":
		return "value"
	case f.Relationship == "":
		return "relationship"
	}
	return ""
}

// Result reports what a consolidation call achieved. Partial failure is
// normal: the counts are for observability, not success/failure signaling.
type Result struct {
	Accepted        int `json:"accepted"`
	Dropped         int `json:"dropped"`
	VectorsInserted int `json:"vectors_inserted"`
}

// RetrievedRecord is one row returned by a graph read query. For category
// expansion rows the record describes the HAS_CATEGORY hop: Key/Value belong
// to the category node and ParentRelationship/ParentValue to the fact the hop
// started from.
type RetrievedRecord struct {
	EdgeID             string
	Relationship       string
	Key                string
	Value              string
	Lifetime           string
	CreatedAt          time.Time
	ParentRelationship string
	ParentValue        string
}

// IsCategory reports whether the record came from a category-expansion hop
func (r RetrievedRecord) IsCategory() bool {
	return r.ParentRelationship != "" && r.ParentValue != ""
}
