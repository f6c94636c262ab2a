package testutil

import (
	"testing"

	"github.com/mastertenor/korgan/internal/prefs"
)

// NewTestPrefs creates an in-memory preference store with all migrations
// applied. It automatically closes the store when the test completes.
func NewTestPrefs(t *testing.T) *prefs.Store {
	t.Helper()

	s, err := prefs.Open(":memory:")
	if err != nil {
		t.Fatalf("creating test preference store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test preference store: %v", err)
		}
	})

	return s
}
