package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSkills(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"mixed separators", "a, b,,\nc", []string{"a", "b", "c"}},
		{"only separators", " ,\n, ", []string{}},
		{"crlf", "Go\r\nSQL", []string{"Go", "SQL"}},
		{"inner spaces kept", "  machine learning , data ", []string{"machine learning", "data"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseSkills(tc.in))
		})
	}
}

func TestJoinSkillsRoundTrip(t *testing.T) {
	skills := []string{"Go", "PostgreSQL", "Docker"}
	assert.Equal(t, skills, ParseSkills(JoinSkills(skills)))
}
