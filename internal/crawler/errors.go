package crawler

import (
	"fmt"
	"strings"
)

// RunAbortError means the run produced nothing usable: no valid search URLs,
// or every search URL failed before yielding a record.
type RunAbortError struct {
	Reason string
	Failed []string
}

func (e *RunAbortError) Error() string {
	if len(e.Failed) == 0 {
		return "crawler: run aborted: " + e.Reason
	}
	return fmt.Sprintf("crawler: run aborted: %s (%s)", e.Reason, strings.Join(e.Failed, ", "))
}
