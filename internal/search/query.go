package search

import "strings"

// BuildQuery composes the competitor search query from an entity name and its category terms.
func BuildQuery(name string, categories []string) string {
	parts := make([]string, 0, len(categories)+2)
	parts = append(parts, name)
	parts = append(parts, categories...)
	parts = append(parts, "competitors pricing features reviews")
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
