package chunker

import (
	"strings"
	"testing"
)

func TestChunkEmptyInput(t *testing.T) {
	c := New(DefaultOptions())

	for _, input := range []string{"", "   ", "\n\n\t", "\x00\x00"} {
		if got := c.Chunk(input); len(got) != 0 {
			t.Errorf("Chunk(%q) = %d chunks, want 0", input, len(got))
		}
	}
}

func TestChunkShortInputPassthrough(t *testing.T) {
	c := New(DefaultOptions())
	input := "AI is transforming marketing content across every industry."

	got := c.Chunk(input)
	if len(got) != 1 {
		t.Fatalf("Chunk() = %d chunks, want 1", len(got))
	}
	if got[0] != input {
		t.Errorf("Chunk()[0] = %q, want %q", got[0], input)
	}
}

func TestChunkExactMaxNotSplit(t *testing.T) {
	c := New(DefaultOptions())
	input := strings.Repeat("a", DefaultMaxChunkSize)

	got := c.Chunk(input)
	if len(got) != 1 {
		t.Fatalf("Chunk() = %d chunks, want 1", len(got))
	}
	if len(got[0]) != DefaultMaxChunkSize {
		t.Errorf("chunk length = %d, want %d", len(got[0]), DefaultMaxChunkSize)
	}
}

func TestChunkRespectsMaxSize(t *testing.T) {
	c := New(DefaultOptions())

	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("Quarterly revenue grew faster than forecast in every region we track. ")
		if i%7 == 0 {
			b.WriteString("\n\n")
		}
	}

	got := c.Chunk(b.String())
	if len(got) < 2 {
		t.Fatalf("Chunk() = %d chunks, want several", len(got))
	}
	for i, ch := range got {
		if len(ch) > DefaultMaxChunkSize {
			t.Errorf("chunk %d length = %d, exceeds max %d", i, len(ch), DefaultMaxChunkSize)
		}
	}
}

func TestChunkUnpunctuatedTerminatesViaHalving(t *testing.T) {
	c := New(DefaultOptions())

	// One long line, spaces but no sentence punctuation.
	input := strings.Repeat("alpha beta gamma delta ", 400)

	got := c.Chunk(input)
	if len(got) == 0 {
		t.Fatal("Chunk() returned no chunks")
	}
	for i, ch := range got {
		if len(ch) > DefaultMaxChunkSize {
			t.Errorf("chunk %d length = %d, exceeds max %d", i, len(ch), DefaultMaxChunkSize)
		}
	}
}

func TestChunkSingleOversizedTokenUnsplit(t *testing.T) {
	c := New(DefaultOptions())
	token := strings.Repeat("x", 2*DefaultMaxChunkSize)

	got := c.Chunk(token)
	if len(got) != 1 {
		t.Fatalf("Chunk() = %d chunks, want 1", len(got))
	}
	if got[0] != token {
		t.Error("oversized single token was modified")
	}
}

func TestChunkMergesSmallFragments(t *testing.T) {
	c := New(Options{MaxChunkSize: 100, MinChunkSize: 40})

	// Short sentences that individually fall below the minimum.
	input := "One. Two. Three. Four. Five. Six. Seven. Eight. Nine. Ten. " +
		"Eleven. Twelve. Thirteen. Fourteen. Fifteen. Sixteen."

	got := c.Chunk(input)
	for i, ch := range got[:len(got)-1] {
		if len(ch) < 40 && len(got) > 1 {
			t.Errorf("chunk %d length = %d, below min with neighbors available", i, len(ch))
		}
	}
	for i, ch := range got {
		if len(ch) > 100 {
			t.Errorf("chunk %d length = %d, exceeds max", i, len(ch))
		}
	}
}

func TestChunkDeterministic(t *testing.T) {
	c := New(DefaultOptions())
	input := strings.Repeat("The pipeline handles spreadsheets, PDFs, and feeds. ", 50)

	a := c.Chunk(input)
	b := c.Chunk(input)

	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkOrderPreserved(t *testing.T) {
	c := New(DefaultOptions())
	input := "First paragraph talks about revenue.\n\nSecond paragraph talks about hiring.\n\nThird paragraph talks about logistics."

	got := c.Chunk(input)
	joined := strings.Join(got, " ")

	first := strings.Index(joined, "revenue")
	second := strings.Index(joined, "hiring")
	third := strings.Index(joined, "logistics")
	if first == -1 || second == -1 || third == -1 {
		t.Fatal("chunk output lost content")
	}
	if !(first < second && second < third) {
		t.Error("chunk output reordered content")
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "terminal punctuation",
			input: "First one. Second one! Third one? Fourth",
			want:  []string{"First one.", "Second one!", "Third one?", "Fourth"},
		},
		{
			name:  "no punctuation",
			input: "just one long run of words",
			want:  []string{"just one long run of words"},
		},
		{
			name:  "trailing period",
			input: "Only sentence.",
			want:  []string{"Only sentence."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("splitSentences() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestIsVisual(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "short text never visual",
			text: "2021: 12%",
			want: false,
		},
		{
			name: "digit dense table extract",
			text: strings.Repeat("2021 1234 5678 ", 8),
			want: true,
		},
		{
			name: "keyword pair",
			text: "The chart below summarizes the table of regional results for the full period shown.",
			want: true,
		},
		{
			name: "year series with source line",
			text: "2021: 12% growth recorded\n2022: 18% growth recorded\n2023: 27% growth recorded\nSource: internal reporting",
			want: true,
		},
		{
			name: "plain prose",
			text: "The leadership offsite covered strategy, culture, and the plans for the coming seasons ahead.",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVisual(tt.text); got != tt.want {
				t.Errorf("IsVisual(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
