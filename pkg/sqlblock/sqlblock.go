// Package sqlblock extracts SQL from the fenced markdown blocks the model
// streams. Blocks may still be open mid-stream, so every helper handles both
// complete ```sql ... ``` fences and a trailing unterminated fence.
package sqlblock

import (
	"regexp"
	"strings"
)

var (
	completeFence   = regexp.MustCompile("(?is)```sql\\s*([\\s\\S]*?)```")
	incompleteFence = regexp.MustCompile("(?is)```sql\\s*([\\s\\S]*)")
	openFence       = regexp.MustCompile("(?i)```sql\\s*")
	trailingFence   = regexp.MustCompile("```\\s*$")
	blankRuns       = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// Extract returns the SQL inside the first fenced block, or the contents of
// a still-open trailing fence, or "".
func Extract(text string) string {
	if m := completeFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := incompleteFence.FindStringSubmatch(text); m != nil {
		sql := strings.TrimSpace(m[1])
		return strings.TrimSpace(trailingFence.ReplaceAllString(sql, ""))
	}
	return ""
}

// Strip removes all SQL fences (complete and open) from text so SQL never
// appears in the transcript, then collapses the whitespace left behind.
func Strip(text string) string {
	if text == "" {
		return ""
	}
	text = completeFence.ReplaceAllString(text, "")
	text = incompleteFence.ReplaceAllString(text, "")
	text = openFence.ReplaceAllString(text, "")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// MergePatch appends patch SQL to an existing schema with a separator, so
// iterative edits accumulate instead of overwriting.
func MergePatch(existing, patch string) string {
	existing = strings.TrimSpace(existing)
	patch = strings.TrimSpace(patch)
	if existing == "" {
		return patch
	}
	if patch == "" {
		return existing
	}
	return existing + "\n\n-- PATCH APPLIED\n" + patch + "\n"
}
