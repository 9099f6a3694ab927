// Package gameid mints room identifiers: UUIDv7 values rendered as
// 26-character Crockford base32. Ids sort by creation time and are
// safe in URLs and filenames (replay files are keyed by game id).
package gameid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// New returns a fresh game id.
func New() string {
	return Encode(uuid.Must(uuid.NewV7()))
}

// Encode renders a UUID as 26 base32 characters. Two zero bits are
// prepended so the 130 bits split evenly; the first character is
// therefore always 0-7.
func Encode(id uuid.UUID) string {
	src := id[:]
	dst := make([]byte, 26)
	dst[0] = alphabet[src[0]>>5]
	bitPos := 3
	for i := 1; i < 26; i++ {
		byteIdx := bitPos / 8
		shift := bitPos % 8
		v := src[byteIdx] << shift >> 3
		if shift > 3 && byteIdx+1 < len(src) {
			v |= src[byteIdx+1] >> (11 - shift)
		}
		dst[i] = alphabet[v&0x1f]
		bitPos += 5
	}
	return string(dst)
}

// Validate checks shape only: 26 characters of the base32 alphabet
// with a leading character in 0-7.
func Validate(id string) error {
	if len(id) != 26 {
		return fmt.Errorf("game id must be 26 characters, got %d", len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("game id first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(alphabet, id[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
