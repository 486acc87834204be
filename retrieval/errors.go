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

package retrieval

import "errors"

var (
	// ErrStoreRequired is returned when a text store is not provided.
	ErrStoreRequired = errors.New("text store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrConfigRequired is returned when an AI config is not provided.
	ErrConfigRequired = errors.New("ai config required")

	// ErrCodeNotFound is returned when a lookup names a code with no
	// stored units.
	ErrCodeNotFound = errors.New("code not found")

	// ErrEmptyQuery is returned when the search text is empty.
	ErrEmptyQuery = errors.New("query text cannot be empty")
)
