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

import "fmt"

// ValidateTextUnit validates a TextUnit according to domain rules.
//
// Validation rules:
//   - Code must be non-empty and in normalized form (lowercase [a-z0-9_.-])
//   - Section must not be empty
//   - Text must not be empty
//
// NOT validated (populated by the pipeline):
//   - Vector (nil until embedding succeeds)
//   - ModelVersion ("" until embedding succeeds)
//   - ContentHash (0 only for a unit that was never hashed)
func ValidateTextUnit(unit *TextUnit) error {
	if unit == nil {
		return fmt.Errorf("%w: unit is nil", ErrInvalidUnit)
	}

	if err := ValidateCode(unit.Code); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUnit, err)
	}

	if unit.Section == "" {
		return fmt.Errorf("%w: %w", ErrInvalidUnit, ErrEmptySection)
	}

	if unit.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidUnit, ErrEmptyText)
	}

	return nil
}

// ValidateCode validates a normalized legal-code identifier. The alphabet
// is restricted so codes embed safely into composite store keys.
func ValidateCode(code string) error {
	if code == "" {
		return ErrEmptyCode
	}
	for _, c := range code {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '.' || c == '-':
		default:
			return fmt.Errorf("%w: %q", ErrMalformedCode, code)
		}
	}
	return nil
}
