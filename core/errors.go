// Copyright 2025 Poiesic Systems
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
	// ErrInvalidFragment indicates a Fragment failed validation.
	ErrInvalidFragment = errors.New("invalid fragment")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidMessage indicates a Message failed validation.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrEmptyContent indicates the text content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptySource indicates a fragment has no source.
	ErrEmptySource = errors.New("source cannot be empty")

	// ErrNegativeSequence indicates a fragment position below zero.
	ErrNegativeSequence = errors.New("sequence cannot be negative")

	// ErrInvalidRole indicates an unknown message Role.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptyFilename indicates a Document with no filename.
	ErrEmptyFilename = errors.New("filename cannot be empty")

	// ErrInvalidContentHash indicates a hash that is not 64 hex characters.
	ErrInvalidContentHash = errors.New("content hash must be 64 hex characters")
)
