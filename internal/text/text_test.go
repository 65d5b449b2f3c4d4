package text_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teleagent/teleagent/internal/text"
)

func TestSplitReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "   ", want: nil},
		{name: "no delimiter", input: "hello there", want: []string{"hello there"}},
		{
			name:  "mixed delimiters",
			input: "Nice to meet you. Want to see my art? It is great! Really",
			want:  []string{"Nice to meet you.", "Want to see my art?", "It is great!", "Really"},
		},
		{name: "decimal numbers stay intact", input: "The price is 0.25 SOL. Deal?", want: []string{"The price is 0.25 SOL.", "Deal?"}},
		{name: "trailing delimiter", input: "One. Two.", want: []string{"One.", "Two."}},
		{name: "repeated delimiters", input: "Wait. . Go", want: []string{"Wait.", ".", "Go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, text.SplitReply(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "short", input: "abc", max: 10, want: "abc"},
		{name: "exact", input: "abcdef", max: 6, want: "abcdef"},
		{name: "cut", input: "abcdefghij", max: 6, want: "abc..."},
		{name: "multibyte", input: "ðððððð", max: 5, want: "ðð..."},
		{name: "tiny max", input: "abcdef", max: 2, want: ".."},
		{name: "zero", input: "abc", max: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, text.Truncate(tt.input, tt.max))
		})
	}
}

func TestStripHistoryPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "no prefix", input: "just text", want: "just text"},
		{name: "single prefix", input: "[2025-01-02 10:11:12] UID 42: hello", want: "hello"},
		{name: "repeated prefix", input: "[2025-01-02 10:11:12] UID 42: [2025-01-02 10:11:13] UID 7: hi", want: "hi"},
		{name: "prefix mid line kept", input: "see [2025-01-02 10:11:12] UID 42: x", want: "see [2025-01-02 10:11:12] UID 42: x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, text.StripHistoryPrefix(tt.input))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "fenced", input: "here:\n```json\n{\"a\":1}\n```\nthanks", want: `{"a":1}`},
		{name: "bare fence", input: "```\n[1,2]\n```", want: "[1,2]"},
		{name: "embedded object", input: "Sure! {\"name\":\"x\"} hope it helps", want: `{"name":"x"}`},
		{name: "plain", input: "nothing here", want: "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, text.ExtractJSON(tt.input))
		})
	}
}

func TestNormalizeSpace(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a b\nc d", text.NormalizeSpace("  a \t b \r\n c    d  "))
}
