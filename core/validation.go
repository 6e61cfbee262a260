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

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ValidateFragment validates a Fragment according to domain rules.
//
// Validation rules:
//   - Text must not be blank
//   - SourceID must not be empty
//   - Sequence must not be negative
//
// NOT validated (populated by the index):
//   - Vector
//   - ID
func ValidateFragment(fragment *Fragment) error {
	if fragment == nil {
		return fmt.Errorf("%w: fragment is nil", ErrInvalidFragment)
	}

	if strings.TrimSpace(fragment.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFragment, ErrEmptyContent)
	}

	if fragment.SourceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFragment, ErrEmptySource)
	}

	if fragment.Sequence < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidFragment, ErrNegativeSequence)
	}

	return nil
}

// ValidateDocument validates a catalog Document.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Filename == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyFilename)
	}

	if len(doc.ContentHash) != 64 {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrInvalidContentHash)
	}
	if _, err := hex.DecodeString(doc.ContentHash); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrInvalidContentHash)
	}

	return nil
}

// ValidateMessage validates a conversation Message.
func ValidateMessage(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}

	if err := ValidateRole(msg.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return nil
	}
	return fmt.Errorf("%w: value %q", ErrInvalidRole, string(role))
}
