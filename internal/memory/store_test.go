package memory

import (
	"fmt"
	"testing"
	"time"
)

func TestOrderForPrompt(t *testing.T) {
	// Build a newest-first scan the way Read's query produces it: m14 is the
	// most recent turn, m0 the oldest.
	newestFirst := func(n int) []Turn {
		base := time.Now()
		turns := make([]Turn, n)
		for i := 0; i < n; i++ {
			turns[i] = Turn{
				ConversationID: "dm:U1",
				Role:           RoleUser,
				Message:        fmt.Sprintf("m%d", n-1-i),
				CreatedAt:      base.Add(-time.Duration(i) * time.Second),
			}
		}
		return turns
	}

	tests := []struct {
		name     string
		scanned  []Turn
		maxTurns int
		first    string
		last     string
		want     int
	}{
		{name: "over the cap keeps most recent", scanned: newestFirst(15), maxTurns: 10, want: 10, first: "m5", last: "m14"},
		{name: "under the cap keeps all", scanned: newestFirst(3), maxTurns: 10, want: 3, first: "m0", last: "m2"},
		{name: "exactly at the cap", scanned: newestFirst(10), maxTurns: 10, want: 10, first: "m0", last: "m9"},
		{name: "empty scan", scanned: nil, maxTurns: 10, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns := orderForPrompt(tt.scanned, tt.maxTurns)

			if len(turns) != tt.want {
				t.Fatalf("expected %d turns, got %d", tt.want, len(turns))
			}
			if tt.want == 0 {
				return
			}
			if turns[0].Message != tt.first || turns[len(turns)-1].Message != tt.last {
				t.Errorf("expected %s..%s oldest-first, got %s..%s",
					tt.first, tt.last, turns[0].Message, turns[len(turns)-1].Message)
			}
			for i := 1; i < len(turns); i++ {
				if turns[i].CreatedAt.Before(turns[i-1].CreatedAt) {
					t.Errorf("turn %d out of order: %v before %v", i, turns[i].CreatedAt, turns[i-1].CreatedAt)
				}
			}
		})
	}
}
