package testutil

import "testing"

// Scenario steps. Each runs fn as a subtest whose name starts with the step
// keyword, so `go test -run 'Given_a_draft'` selects a single branch.
func Given(t *testing.T, desc string, fn func(t *testing.T)) { t.Helper(); step(t, "Given", desc, fn) }
func When(t *testing.T, desc string, fn func(t *testing.T))  { t.Helper(); step(t, "When", desc, fn) }
func Then(t *testing.T, desc string, fn func(t *testing.T))  { t.Helper(); step(t, "Then", desc, fn) }
func And(t *testing.T, desc string, fn func(t *testing.T))   { t.Helper(); step(t, "And", desc, fn) }

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(keyword+" "+desc, fn)
}
