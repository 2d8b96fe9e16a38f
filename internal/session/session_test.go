package session

import (
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "work123", false},
		{"valid with hyphen", "my-session", false},
		{"valid with underscore", "my_session", false},
		{"valid single char", "a", false},
		{"valid max length", strings.Repeat("a", 64), false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "my session", true},
		{"dot", "my.session", true},
		{"too long", strings.Repeat("a", 65), true},
		{"special chars", "my@session", true},
		{"slash", "my/session", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestResolvePrecedence(t *testing.T) {
	t.Setenv("CHATCORE_SESSION", "from-env")
	if got := Resolve("from-flag"); got != "from-flag" {
		t.Errorf("flag override: got %q", got)
	}
	if got := Resolve(""); got != "from-env" {
		t.Errorf("env fallback: got %q", got)
	}
	t.Setenv("CHATCORE_SESSION", "")
	if got := Resolve(""); got != DefaultSessionName {
		t.Errorf("default: got %q", got)
	}
}

func TestPathsAreSessionScoped(t *testing.T) {
	a, b := Dir("one"), Dir("two")
	if a == b {
		t.Error("sessions must not share a directory")
	}
	if !strings.HasPrefix(CacheDBPath("one"), a) {
		t.Error("cache db should live under the session dir")
	}
	if !strings.HasPrefix(LogPath("one"), a) {
		t.Error("log file should live under the session dir")
	}
}
