package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSchemaIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Person", "Person"},
		{"isMemberOf", "isMemberOf"},
		{"has_part", "has_part"},
		{"Team42", "Team42"},
		{"has-part", "has_part"},
		{"two words", "two_words"},
		{"42things", "T_42things"},
		{"_private", "T__private"},
		{"", "T_"},
		{"héllo", "h_llo"},
		{"a.b.c", "a_b_c"},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeSchemaIdentifier(tc.in))
		})
	}
}
