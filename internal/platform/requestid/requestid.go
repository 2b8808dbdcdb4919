package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const maxLen = 64

func New() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// FromHeader accepts a caller-supplied id when it is short and printable, otherwise mints one.
func FromHeader(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxLen {
		return New()
	}
	for _, r := range v {
		if r < 0x21 || r > 0x7e {
			return New()
		}
	}
	return v
}
