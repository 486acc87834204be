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

import "errors"

// Domain validation errors
var (
	// ErrInvalidUnit indicates a TextUnit failed validation.
	ErrInvalidUnit = errors.New("invalid text unit")

	// ErrEmptyCode indicates the Code field is empty.
	ErrEmptyCode = errors.New("code cannot be empty")

	// ErrMalformedCode indicates the Code field contains characters outside
	// the normalized identifier alphabet.
	ErrMalformedCode = errors.New("code must be lowercase [a-z0-9_.-]")

	// ErrEmptySection indicates the Section field is empty.
	ErrEmptySection = errors.New("section cannot be empty")

	// ErrEmptyText indicates the Text field is empty after normalization.
	ErrEmptyText = errors.New("text cannot be empty")
)
