package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommitMessage(t *testing.T) {
	tests := []struct {
		name    string
		ctype   string
		scope   string
		subject string
		body    string
		want    string
	}{
		{
			name:    "simple",
			ctype:   CommitTypeFeat,
			subject: "add invoice total",
			want:    "feat: add invoice total\n\nSynced-by: livefield",
		},
		{
			name:    "with scope",
			ctype:   CommitTypeChore,
			scope:   "fields",
			subject: "sync 2 live fields",
			want:    "chore(fields): sync 2 live fields\n\nSynced-by: livefield",
		},
		{
			name:    "with body",
			ctype:   CommitTypeFix,
			subject: "repair lookup",
			body:    "  scripts/Lookup.js\n",
			want:    "fix: repair lookup\n\nscripts/Lookup.js\n\nSynced-by: livefield",
		},
		{
			name:    "default type",
			subject: "import",
			want:    "chore: import\n\nSynced-by: livefield",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CommitMessage(tt.ctype, tt.scope, tt.subject, tt.body))
		})
	}
}
