package badger

import (
	"bytes"
	"encoding/binary"

	"github.com/normenwerk/normstore/core"
)

// Key prefixes for different data types
const (
	unitPrefix         = "unit"
	unitPositionPrefix = "unitpos"
)

// keySep separates key components. Sections and sub-sections may contain
// any printable character, so a NUL byte is the only safe separator.
const keySep = "\x00"

// makeUnitKey generates the primary key for a unit.
// Format: unit:code\x00section\x00subsection
func makeUnitKey(key core.UnitKey) []byte {
	var buf bytes.Buffer
	buf.WriteString(unitPrefix)
	buf.WriteString(":")
	buf.WriteString(key.Code)
	buf.WriteString(keySep)
	buf.WriteString(key.Section)
	buf.WriteString(keySep)
	buf.WriteString(key.SubSection)
	return buf.Bytes()
}

// makeUnitPrefix generates the scan prefix for all units of a code.
func makeUnitPrefix(code string) []byte {
	if code == "" {
		return []byte(unitPrefix + ":")
	}
	return []byte(unitPrefix + ":" + code + keySep)
}

// makeSectionPrefix generates the scan prefix for all units under one
// section of a code.
func makeSectionPrefix(code, section string) []byte {
	return []byte(unitPrefix + ":" + code + keySep + section + keySep)
}

// makeUnitPositionKey generates a composite key for the document-order index.
// Format: unitpos:code\x00position
// Position is written in BigEndian order so lexicographic sort matches
// document order.
func makeUnitPositionKey(code string, position int) []byte {
	prefix := []byte(unitPositionPrefix + ":" + code + keySep)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(position))
	return buf
}

// makeUnitPositionPrefix generates the scan prefix for a code's
// document-order index.
func makeUnitPositionPrefix(code string) []byte {
	return []byte(unitPositionPrefix + ":" + code + keySep)
}

// codeFromUnitKey extracts the code component from a primary unit key.
// Returns "" if the key is not a unit key.
func codeFromUnitKey(key []byte) string {
	rest, ok := bytes.CutPrefix(key, []byte(unitPrefix+":"))
	if !ok {
		return ""
	}
	code, _, ok := bytes.Cut(rest, []byte(keySep))
	if !ok {
		return ""
	}
	return string(code)
}
