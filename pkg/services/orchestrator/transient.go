package orchestrator

import "strings"

// transientSubstrings is the exact substring rule from spec.md §4.1: a
// connector failure is transient, and therefore retryable, only if its
// message contains one of these words. This is deliberately narrower than
// pkg/retry.IsRetryable's broader pattern list — the orchestrator's
// retry/timeout/failed transitions are state visible to job_status callers,
// so they must match the spec's exact classification rather than a general
// purpose heuristic.
var transientSubstrings = []string{"timeout", "connection", "unavailable", "temporary"}

// isTransient reports whether err's message matches the transient rule.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range transientSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
