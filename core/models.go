package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// HashContent computes a deterministic 64-bit BLAKE2b hash of text content.
// Identical content always produces an identical hash, which is how
// re-imports detect unchanged units.
func HashContent(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// NormalizeCode canonicalizes a legal-code identifier: lowercased and
// trimmed of surrounding whitespace. Codes are compared in this form
// everywhere (store keys, filters, reports).
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// UnitKey identifies a TextUnit within the store.
// An empty SubSection denotes whole-section granularity.
type UnitKey struct {
	Code       string
	Section    string
	SubSection string
}

// String renders the key for logs and reports, e.g. "bgb/§ 433/1".
func (k UnitKey) String() string {
	if k.SubSection == "" {
		return k.Code + "/" + k.Section
	}
	return k.Code + "/" + k.Section + "/" + k.SubSection
}

// TextUnit is the atomic retrievable item: one addressable passage of a
// legal code, optionally enriched with an embedding vector.
type TextUnit struct {
	Code         string
	Section      string    // heading, e.g. "§ 433"
	SubSection   string    // "" when the section has no sub-section markers
	Text         string    // whitespace-normalized body
	Position     int       // document order within the code
	ContentHash  uint64    // HashContent of Text
	ModelVersion string    // embedding model tag; "" until embedded
	Vector       []float32 // nil until embedding succeeds
	InsertedAt   time.Time // when the unit was first persisted
	UpdatedAt    time.Time // when the unit was last overwritten
}

// Key returns the unit's identifying (code, section, sub_section) triple.
func (u *TextUnit) Key() UnitKey {
	return UnitKey{Code: u.Code, Section: u.Section, SubSection: u.SubSection}
}

// Embedded reports whether the unit carries an embedding vector.
func (u *TextUnit) Embedded() bool {
	return len(u.Vector) > 0
}

// ScoredUnit pairs a unit with its cosine distance to a query vector.
type ScoredUnit struct {
	Unit     *TextUnit
	Distance float32
}
