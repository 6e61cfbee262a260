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

package badger

import (
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/storage"
)

// Stores bundles the three repositories sharing one backend.
type Stores struct {
	Index         storage.FragmentIndex
	Catalog       storage.DocumentCatalog
	Conversations storage.ConversationRepository
	Backend       *Backend
}

// Close releases the repositories and then the backend.
func (s *Stores) Close() error {
	s.Index.Close()
	s.Catalog.Close()
	s.Conversations.Close()
	return s.Backend.Close()
}

// OpenStores opens every repository on a single backend.
// An empty path with inMemory set gives a throwaway database for tests.
func OpenStores(path string, inMemory bool, embedder ai.Embedder) (*Stores, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	index, err := NewFragmentIndex(backend, embedder)
	if err != nil {
		backend.Close()
		return nil, err
	}

	catalog, err := NewDocumentCatalog(backend)
	if err != nil {
		index.Close()
		backend.Close()
		return nil, err
	}

	conversations, err := NewConversationRepository(backend)
	if err != nil {
		catalog.Close()
		index.Close()
		backend.Close()
		return nil, err
	}

	return &Stores{
		Index:         index,
		Catalog:       catalog,
		Conversations: conversations,
		Backend:       backend,
	}, nil
}

// NewMemoryStores creates in-memory repositories for testing.
// Caller must Close the returned Stores when done.
func NewMemoryStores(embedder ai.Embedder) (*Stores, error) {
	return OpenStores("", true, embedder)
}
