package vector

import "strings"

// ElementType tags a stored vector with the kind of graph element its text
// came from.
type ElementType string

const (
	// ElementNode marks texts taken from fact values and category keys
	ElementNode ElementType = "Node"
	// ElementRelationship marks texts taken from edge verbs
	ElementRelationship ElementType = "Relationship"
)

// Record is one stored embedding. Text is the primary key: the store holds at
// most one record per normalized text, globally.
type Record struct {
	Text        string
	Embedding   []float32
	ElementType ElementType
}

// Hit is a similarity search result
type Hit struct {
	Text        string
	ElementType ElementType
	Score       float32
}

// NormalizeText lowercases and trims a text the way it is keyed in the store
func NormalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
