package memory

import (
	"testing"
	"time"
)

func TestFormatHistory(t *testing.T) {
	tests := []struct {
		name     string
		turns    []Turn
		expected string
	}{
		{
			name:     "empty history",
			turns:    nil,
			expected: "",
		},
		{
			name: "single user turn",
			turns: []Turn{
				{Role: RoleUser, Message: "Hello"},
			},
			expected: "User: Hello",
		},
		{
			name: "user and assistant turns",
			turns: []Turn{
				{Role: RoleUser, Message: "Hello"},
				{Role: RoleAssistant, Message: "Hi there!"},
			},
			expected: "User: Hello\nAssistant: Hi there!",
		},
		{
			name: "preserves turn order",
			turns: []Turn{
				{Role: RoleUser, Message: "first"},
				{Role: RoleAssistant, Message: "second"},
				{Role: RoleUser, Message: "third"},
			},
			expected: "User: first\nAssistant: second\nUser: third",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatHistory(tt.turns); got != tt.expected {
				t.Errorf("FormatHistory() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFormatHistory_Deterministic(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Message: "question", CreatedAt: time.Now()},
		{Role: RoleAssistant, Message: "answer", CreatedAt: time.Now()},
	}

	if FormatHistory(turns) != FormatHistory(turns) {
		t.Errorf("FormatHistory must be pure")
	}
}

func TestReverse(t *testing.T) {
	turns := []Turn{
		{Message: "c"},
		{Message: "b"},
		{Message: "a"},
	}

	reverse(turns)

	for i, want := range []string{"a", "b", "c"} {
		if turns[i].Message != want {
			t.Errorf("turn %d: expected %q, got %q", i, want, turns[i].Message)
		}
	}
}
