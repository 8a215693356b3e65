package core

import "testing"

func TestEscapeRoundTrip(t *testing.T) {
	script := "var a = 1;\nvar b = 2;\n"
	escaped := EscapeScript(script)
	if escaped != `var a = 1;\nvar b = 2;\n` {
		t.Fatalf("unexpected escape: %q", escaped)
	}
	if got := UnescapeScript(escaped); got != script {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestNormalizeScript(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"legacy escaped", `var a = 1;\nreturn a;`, "var a = 1;\nreturn a;"},
		{"multi-line keeps literals", "var s = 'a\\nb';\nreturn s;", "var s = 'a\\nb';\nreturn s;"},
		{"single line", "return 1;", "return 1;"},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeScript(tc.in); got != tc.want {
				t.Errorf("NormalizeScript(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
