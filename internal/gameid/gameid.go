// Package gameid generates and screens the identifiers hosted games
// go by. IDs appear in URLs and in record filenames, so generated IDs
// are lowercase base32 UUIDv7 (time-sortable, no path or shell
// metacharacters) and client-chosen IDs are held to the same safe
// character set.
package gameid

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Crockford's base32, the TypeID alphabet
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// MaxIDLength bounds client-chosen game IDs
const MaxIDLength = 64

// RandSource supplies the random bits of an ID, rand/v2 style.
// Production code leaves it nil and gets crypto/rand.
type RandSource interface {
	IntN(n int) int
}

// Generator produces game IDs with injectable randomness
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a generator. A nil RandSource means crypto/rand.
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate creates a game ID: a UUIDv7 encoded as 26 characters of
// lowercase base32. Lexicographic order matches creation order.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate creates a new game ID using the generator's RandSource
func (g *Generator) Generate() string {
	return encodeBase32(g.generateUUIDv7())
}

// generateUUIDv7 creates a 128-bit UUIDv7: 48-bit millisecond
// timestamp, then version and variant bits over random data.
func (g *Generator) generateUUIDv7() [16]byte {
	var uuid [16]byte

	now := time.Now().UnixMilli()
	uuid[0] = byte(now >> 40)
	uuid[1] = byte(now >> 32)
	uuid[2] = byte(now >> 24)
	uuid[3] = byte(now >> 16)
	uuid[4] = byte(now >> 8)
	uuid[5] = byte(now)

	if g.randSource != nil {
		for i := 6; i < 16; i++ {
			uuid[i] = byte(g.randSource.IntN(256))
		}
	} else {
		if _, err := rand.Read(uuid[6:]); err != nil {
			panic("failed to generate random bytes: " + err.Error())
		}
	}

	// Version 7, variant 10
	uuid[6] = (uuid[6] & 0x0f) | 0x70
	uuid[8] = (uuid[8] & 0x3f) | 0x80

	return uuid
}

// encodeBase32 encodes a 128-bit UUID as 26 base32 characters
func encodeBase32(data [16]byte) string {
	result := make([]byte, 26)

	// Walk the 128 bits five at a time, high bits first
	for i := 0; i < 26; i++ {
		bitOffset := i * 5
		byteIndex := bitOffset / 8
		bitIndex := bitOffset % 8

		var value uint8
		if byteIndex < 16 {
			if bitIndex <= 3 {
				value = (data[byteIndex] >> (3 - bitIndex)) & 0x1f
			} else {
				value = (data[byteIndex] << (bitIndex - 3)) & 0x1f
				if byteIndex+1 < 16 {
					value |= data[byteIndex+1] >> (11 - bitIndex)
				}
			}
		}

		result[i] = alphabet[value]
	}

	return string(result)
}

// Validate screens a game ID, including client-chosen ones. IDs end
// up in URLs and record filenames, so only lowercase letters, digits,
// hyphens, and underscores are allowed.
func Validate(id string) error {
	if id == "" {
		return fmt.Errorf("game ID must not be empty")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("game ID must be at most %d characters, got %d", MaxIDLength, len(id))
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return fmt.Errorf("invalid character %q at position %d", c, i)
		}
	}
	return nil
}
