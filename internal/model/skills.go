package model

import "strings"

// ParseSkills splits the free-text skills field on commas and newlines,
// trims every token and drops the empty ones.
func ParseSkills(text string) []string {
	out := []string{}
	if text == "" {
		return out
	}
	tokens := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' })
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// JoinSkills is the inverse used when a stored record is replayed into the
// skills textarea.
func JoinSkills(skills []string) string {
	return strings.Join(skills, "\n")
}
