package fetcher

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const bom = "\ufeff"

// Normalize strips a byte-order mark, converts CRLF and CR line endings to LF,
// and leaves exactly one terminating newline. Empty input stays empty.
func Normalize(text string) string {
	text = strings.TrimPrefix(text, bom)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	return text + "\n"
}

// Hash returns the hex SHA-256 of text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
