package memory

import (
	"fmt"
	"strings"
	"time"
)

// renderSentences turns retrieved records into human-readable context
// sentences, stopping once topK have accumulated. Category records produce a
// pair: the parent fact's sentence followed by the category sentence.
// Non-category records are deduplicated on (verb, value, key).
func renderSentences(records []RetrievedRecord, topK int) []string {
	sentences := make([]string, 0, topK)
	seen := make(map[[3]string]bool)

	for _, record := range records {
		if len(sentences) >= topK {
			break
		}

		recordedAt := formatTimestamp(record.CreatedAt)

		if record.IsCategory() {
			parentVerb := strings.ToLower(record.ParentRelationship)
			parentValue := strings.ToLower(record.ParentValue)
			sentences = append(sentences, capitalize(fmt.Sprintf(
				"you %s %s, recorded around %s, lifetime %s.",
				parentVerb, parentValue, recordedAt, record.Lifetime,
			)))
			if len(sentences) >= topK {
				break
			}
			sentences = append(sentences, fmt.Sprintf(
				"%s is a %s of %s.",
				capitalize(parentValue),
				strings.ToLower(record.Key),
				strings.ToLower(record.Value),
			))
			continue
		}

		verb := strings.ToLower(record.Relationship)
		value := strings.ToLower(record.Value)
		key := strings.ToLower(record.Key)
		if verb == "" || value == "" {
			continue
		}
		tuple := [3]string{verb, value, key}
		if seen[tuple] {
			continue
		}
		seen[tuple] = true

		sentences = append(sentences, capitalize(fmt.Sprintf(
			"you %s %s, recorded around %s, lifetime %s.",
			verb, value, recordedAt, record.Lifetime,
		)))
	}

	return sentences
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format(time.RFC3339)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
