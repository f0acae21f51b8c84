package store

import (
	"strings"
	"testing"
)

func TestDedupRatio(t *testing.T) {
	tests := []struct {
		name       string
		unique     int
		duplicates int
		want       float64
	}{
		{name: "no chunks", unique: 0, duplicates: 0, want: 0},
		{name: "all unique", unique: 10, duplicates: 0, want: 0},
		{name: "all duplicate", unique: 0, duplicates: 5, want: 1},
		{name: "half", unique: 3, duplicates: 3, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DedupRatio(tt.unique, tt.duplicates); got != tt.want {
				t.Errorf("DedupRatio(%d, %d) = %v, want %v", tt.unique, tt.duplicates, got, tt.want)
			}
		})
	}
}

func TestTruncateError(t *testing.T) {
	short := "parse failed"
	if got := truncateError(short); got != short {
		t.Errorf("truncateError(short) = %q, want unchanged", got)
	}

	long := strings.Repeat("x", 400)
	got := truncateError(long)
	if len(got) != maxErrorMessageLen {
		t.Errorf("truncateError(long) length = %d, want %d", len(got), maxErrorMessageLen)
	}

	multibyte := strings.Repeat("é", 300)
	got = truncateError(multibyte)
	if n := len([]rune(got)); n != maxErrorMessageLen {
		t.Errorf("truncateError(multibyte) rune length = %d, want %d", n, maxErrorMessageLen)
	}
}

func TestFileRecordFileHash(t *testing.T) {
	f := &FileRecord{}
	if f.FileHash() != "" {
		t.Error("nil metadata should yield empty hash")
	}

	f.Metadata = map[string]any{"file_hash": "abc123"}
	if got := f.FileHash(); got != "abc123" {
		t.Errorf("FileHash() = %q, want abc123", got)
	}

	f.Metadata = map[string]any{"file_hash": 42}
	if f.FileHash() != "" {
		t.Error("non-string hash should yield empty string")
	}
}
