package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	v, c, d := Info()
	if v == "" || c == "" || d == "" {
		t.Errorf("Info must return non-empty values, got %q %q %q", v, c, d)
	}
}

func TestString(t *testing.T) {
	s := String()
	for _, field := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, field) {
			t.Errorf("String should contain %q, got %q", field, s)
		}
	}
}
