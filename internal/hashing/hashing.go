package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// fileReadBufferSize is the read granularity for whole-file hashing.
const fileReadBufferSize = 8 * 1024

// FileHash computes the SHA-256 of a file's full byte stream using
// buffered reads. Returns lowercase hex.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing; %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, fileReadBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("failed to read file for hashing; %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// SemanticHash computes the SHA-256 of the UTF-8 encoding of cleaned
// chunk text. Returns lowercase hex.
func SemanticHash(cleanedText string) string {
	sum := sha256.Sum256([]byte(cleanedText))
	return hex.EncodeToString(sum[:])
}
