package sqlblock

import (
	"strings"
	"testing"
)

func TestExtract_CompleteBlock(t *testing.T) {
	text := "Here is your schema:\n```sql\nCREATE TABLE users (id INT);\n```\nDone."
	got := Extract(text)
	if got != "CREATE TABLE users (id INT);" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_IncompleteBlockMidStream(t *testing.T) {
	text := "Building it now:\n```sql\nCREATE TABLE users ("
	got := Extract(text)
	if got != "CREATE TABLE users (" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_CaseInsensitiveFence(t *testing.T) {
	got := Extract("```SQL\nSELECT 1;\n```")
	if got != "SELECT 1;" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_NoBlock(t *testing.T) {
	if got := Extract("no sql here"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestStrip_RemovesCompleteAndOpenFences(t *testing.T) {
	text := "I created the table.\n```sql\nCREATE TABLE users (id INT);\n```\nAnd started another:\n```sql\nALTER TABLE"
	got := Strip(text)
	if strings.Contains(got, "CREATE TABLE") || strings.Contains(got, "ALTER TABLE") {
		t.Errorf("SQL leaked into transcript text: %q", got)
	}
	if !strings.Contains(got, "I created the table.") {
		t.Errorf("explanatory text lost: %q", got)
	}
}

func TestStrip_CollapsesLeftoverBlankLines(t *testing.T) {
	text := "Before.\n\n```sql\nSELECT 1;\n```\n\n\nAfter."
	got := Strip(text)
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("blank run survived: %q", got)
	}
}

func TestStrip_Empty(t *testing.T) {
	if got := Strip(""); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestMergePatch(t *testing.T) {
	tests := []struct {
		name, existing, patch, want string
	}{
		{"both empty", "", "", ""},
		{"no existing", "", "SELECT 1;", "SELECT 1;"},
		{"no patch", "SELECT 1;", "", "SELECT 1;"},
		{"merge", "CREATE TABLE t (id INT);", "ALTER TABLE t ADD name TEXT;",
			"CREATE TABLE t (id INT);\n\n-- PATCH APPLIED\nALTER TABLE t ADD name TEXT;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergePatch(tt.existing, tt.patch); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
