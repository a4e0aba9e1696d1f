package prompt

import (
	"strings"
	"testing"

	"wingman/internal/vectorindex"
)

func TestAssemble_WithHistory(t *testing.T) {
	got := Assemble("User: Hello\nAssistant: Hi there!", "From docs:\nSetup guide", "How do I deploy?")

	want := framing + "\n\n" +
		"Previous conversation:\nUser: Hello\nAssistant: Hi there!\n\n" +
		"Context:\nFrom docs:\nSetup guide\n\n" +
		"Question: How do I deploy?\n\nAnswer:"

	if got != want {
		t.Errorf("Assemble() = %q, want %q", got, want)
	}
}

func TestAssemble_WithoutHistory(t *testing.T) {
	got := Assemble("", "From docs:\nSetup guide", "How do I deploy?")

	if strings.Contains(got, "Previous conversation:") {
		t.Errorf("empty history must omit the previous-conversation section")
	}
	if !strings.Contains(got, "Context:\nFrom docs:\nSetup guide") {
		t.Errorf("context section missing from %q", got)
	}
	if !strings.HasSuffix(got, "Question: How do I deploy?\n\nAnswer:") {
		t.Errorf("prompt must end with the question/answer frame, got %q", got)
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	a := Assemble("User: hi", "From slack:\nsome thread", "what changed?")
	b := Assemble("User: hi", "From slack:\nsome thread", "what changed?")

	if a != b {
		t.Errorf("Assemble must yield byte-identical output for identical inputs")
	}
}

func TestBuildContext(t *testing.T) {
	tests := []struct {
		name     string
		results  []vectorindex.Result
		expected string
	}{
		{
			name:     "no results",
			results:  nil,
			expected: "",
		},
		{
			name: "single result",
			results: []vectorindex.Result{
				{Content: "release notes", Metadata: vectorindex.Metadata{"source": "docs"}},
			},
			expected: "From docs:\nrelease notes",
		},
		{
			name: "multiple results joined by blank lines",
			results: []vectorindex.Result{
				{Content: "first", Metadata: vectorindex.Metadata{"source": "slack"}},
				{Content: "second", Metadata: vectorindex.Metadata{"source": "docs"}},
			},
			expected: "From slack:\nfirst\n\nFrom docs:\nsecond",
		},
		{
			name: "missing source falls back to unknown",
			results: []vectorindex.Result{
				{Content: "orphan", Metadata: vectorindex.Metadata{}},
			},
			expected: "From unknown:\norphan",
		},
		{
			name: "non-string source falls back to unknown",
			results: []vectorindex.Result{
				{Content: "odd", Metadata: vectorindex.Metadata{"source": 42}},
			},
			expected: "From unknown:\nodd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildContext(tt.results); got != tt.expected {
				t.Errorf("BuildContext() = %q, want %q", got, tt.expected)
			}
		})
	}
}
