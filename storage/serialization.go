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

package storage

import (
	"fmt"

	"github.com/normenwerk/normstore/core"
)

// MarshalTextUnit serializes a TextUnit to bytes.
func MarshalTextUnit(unit *core.TextUnit) []byte {
	buf := make([]byte, core.TextUnitMUS.Size(*unit))
	core.TextUnitMUS.Marshal(*unit, buf)
	return buf
}

// UnmarshalTextUnit deserializes a TextUnit from bytes.
func UnmarshalTextUnit(data []byte) (*core.TextUnit, error) {
	unit, _, err := core.TextUnitMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &unit, nil
}
