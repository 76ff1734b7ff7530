package pawapay

import "testing"

func TestSanitizeStatementDescription(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"DULU Pro (Extension)!", "DULU Pro Extension"},
		{"DULU Pro", "DULU Pro"},
		{"", ""},
		{"   leading spaces", "leading spaces"},
		{"trailing spaces   ", "trailing spaces"},
		{"punctuation,;:!?only", "punctuationonly"},
		{"double  space  between", "double space between"},
		{"abcdefghijklmnopqrstuvwxyz0123456789", "abcdefghijklmnopqrstuv"},
	}
	for _, tc := range cases {
		got := SanitizeStatementDescription(tc.in)
		if got != tc.want {
			t.Errorf("SanitizeStatementDescription(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if len(got) > statementDescriptionMaxLen {
			t.Errorf("SanitizeStatementDescription(%q) exceeds %d chars: %q", tc.in, statementDescriptionMaxLen, got)
		}
	}
}
