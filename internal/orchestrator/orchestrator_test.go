package orchestrator

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple sentence", "Fix the login bug", "fix-the-login-bug"},
		{"punctuation stripped", "Add OAuth2 support!!", "add-oauth2-support"},
		{"truncates to six words", "one two three four five six seven eight", "one-two-three-four-five-six"},
		{"leading and trailing noise", "  --hello world--  ", "hello-world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slugify(tt.in)
			if got != tt.want {
				t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugifyNeverEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "!!!", "---"} {
		got := slugify(in)
		if got == "" {
			t.Errorf("slugify(%q) returned empty slug", in)
		}
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single line", "hello world", "hello world"},
		{"multi line takes first", "first line\nsecond line", "first line"},
		{"empty falls back", "", "Untitled task"},
		{"whitespace only falls back", "   \n  ", "Untitled task"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := firstLine(tt.in)
			if got != tt.want {
				t.Errorf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFirstLineTruncatesLongInput(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "x"
	}
	got := firstLine(long)
	if len(got) != 80 {
		t.Errorf("firstLine truncated length = %d, want 80", len(got))
	}
}

func TestSplitChannel(t *testing.T) {
	tests := []struct {
		name        string
		channel     string
		wantProject string
		wantSlug    string
	}{
		{"empty channel", "", "", ""},
		{"project and slug", "acme/fix-login-bug", "acme", "fix-login-bug"},
		{"no slash is treated as a bare slug", "fix-login-bug", "", "fix-login-bug"},
		{"slug with embedded slash keeps remainder", "acme/nested/slug", "acme", "nested/slug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotProject, gotSlug := splitChannel(tt.channel)
			if gotProject != tt.wantProject || gotSlug != tt.wantSlug {
				t.Errorf("splitChannel(%q) = (%q, %q), want (%q, %q)", tt.channel, gotProject, gotSlug, tt.wantProject, tt.wantSlug)
			}
		})
	}
}
