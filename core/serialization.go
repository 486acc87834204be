// Copyright 2025 Normenwerk
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// TextUnitMUS is the MUS format serializer for TextUnit.
var TextUnitMUS = textUnitMUS{}

var vectorMUS = ord.NewSliceSer[float32](raw.Float32)

type textUnitMUS struct{}

// Marshal writes unit into bs and returns the number of bytes written.
// bs must be at least Size(unit) bytes long.
func (s textUnitMUS) Marshal(unit TextUnit, bs []byte) (n int) {
	n = ord.String.Marshal(unit.Code, bs)
	n += ord.String.Marshal(unit.Section, bs[n:])
	n += ord.String.Marshal(unit.SubSection, bs[n:])
	n += ord.String.Marshal(unit.Text, bs[n:])
	n += varint.PositiveInt.Marshal(unit.Position, bs[n:])
	n += raw.Uint64.Marshal(unit.ContentHash, bs[n:])
	n += ord.String.Marshal(unit.ModelVersion, bs[n:])
	n += vectorMUS.Marshal(unit.Vector, bs[n:])
	n += raw.TimeUnixMicroUTC.Marshal(unit.InsertedAt, bs[n:])
	n += raw.TimeUnixMicroUTC.Marshal(unit.UpdatedAt, bs[n:])
	return n
}

// Unmarshal reads a TextUnit from bs.
func (s textUnitMUS) Unmarshal(bs []byte) (unit TextUnit, n int, err error) {
	var n1 int
	if unit.Code, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if unit.Section, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if unit.SubSection, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if unit.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if unit.Position, n1, err = varint.PositiveInt.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if unit.ContentHash, n1, err = raw.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if unit.ModelVersion, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if unit.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if len(unit.Vector) == 0 {
		unit.Vector = nil
	}
	if unit.InsertedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if unit.UpdatedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

// Size returns the number of bytes Marshal will write for unit.
func (s textUnitMUS) Size(unit TextUnit) (size int) {
	size = ord.String.Size(unit.Code)
	size += ord.String.Size(unit.Section)
	size += ord.String.Size(unit.SubSection)
	size += ord.String.Size(unit.Text)
	size += varint.PositiveInt.Size(unit.Position)
	size += raw.Uint64.Size(unit.ContentHash)
	size += ord.String.Size(unit.ModelVersion)
	size += vectorMUS.Size(unit.Vector)
	size += raw.TimeUnixMicroUTC.Size(unit.InsertedAt)
	size += raw.TimeUnixMicroUTC.Size(unit.UpdatedAt)
	return size
}
