package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type storedToken struct {
	ref   TokenRef
	token Token
}

// MemoryTokenStore is the reference TokenStore. It honors the same policy
// semantics as the SQL store and backs tests and credential-less setups.
type MemoryTokenStore struct {
	mu     sync.Mutex
	policy StorePolicy
	// entries is keyed service -> user -> token id.
	entries map[string]map[string]map[string]storedToken
}

func NewMemoryTokenStore(policy StorePolicy) *MemoryTokenStore {
	if policy == "" {
		policy = StorePolicySingleton
	}
	return &MemoryTokenStore{
		policy:  policy,
		entries: map[string]map[string]map[string]storedToken{},
	}
}

func (s *MemoryTokenStore) Save(_ context.Context, userID string, token Token) (TokenRef, error) {
	if s == nil {
		return TokenRef{}, fmt.Errorf("core: token store is not configured")
	}
	serviceName := strings.TrimSpace(token.ServiceName)
	userID = strings.TrimSpace(userID)
	if serviceName == "" {
		return TokenRef{}, fmt.Errorf("core: token service name is required")
	}
	if userID == "" {
		return TokenRef{}, fmt.Errorf("core: token user id is required")
	}
	if err := token.Kind.Validate(); err != nil {
		return TokenRef{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.entries[serviceName]
	if !ok {
		users = map[string]map[string]storedToken{}
		s.entries[serviceName] = users
	}
	tokens, ok := users[userID]
	if !ok {
		tokens = map[string]storedToken{}
		users[userID] = tokens
	}

	uniqueID := token.UniqueID()
	if s.policy == StorePolicySingleton {
		clear(tokens)
	} else {
		// Multi policy keeps one entry per distinct credential: replacing
		// the same material reuses the existing id.
		for id, existing := range tokens {
			if existing.ref.UniqueID == uniqueID {
				existing.token = token.clone()
				tokens[id] = existing
				return existing.ref, nil
			}
		}
	}

	ref := TokenRef{
		ID:          uuid.NewString(),
		ServiceName: serviceName,
		UserID:      userID,
		UniqueID:    uniqueID,
	}
	tokens[ref.ID] = storedToken{ref: ref, token: token.clone()}
	return ref, nil
}

func (s *MemoryTokenStore) Get(_ context.Context, serviceName, userID, tokenID string) (Token, error) {
	if s == nil {
		return Token{}, fmt.Errorf("core: token store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.tokensFor(serviceName, userID)
	tokenID = strings.TrimSpace(tokenID)
	if tokenID != "" {
		entry, ok := tokens[tokenID]
		if !ok {
			return Token{}, ErrTokenNotFound
		}
		return entry.token.clone(), nil
	}

	switch len(tokens) {
	case 0:
		return Token{}, ErrTokenNotFound
	case 1:
		for _, entry := range tokens {
			return entry.token.clone(), nil
		}
	}
	return Token{}, ErrAmbiguousToken
}

func (s *MemoryTokenStore) List(_ context.Context, filter TokenFilter) ([]Token, error) {
	if s == nil {
		return nil, fmt.Errorf("core: token store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	serviceName := strings.TrimSpace(filter.ServiceName)
	userID := strings.TrimSpace(filter.UserID)

	out := []Token{}
	for service, users := range s.entries {
		if serviceName != "" && service != serviceName {
			continue
		}
		for user, tokens := range users {
			if userID != "" && user != userID {
				continue
			}
			for _, entry := range tokens {
				out = append(out, entry.token.clone())
			}
		}
	}
	return out, nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, serviceName, userID, tokenID string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("core: token store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.tokensFor(serviceName, userID)
	tokenID = strings.TrimSpace(tokenID)
	if tokenID != "" {
		if _, ok := tokens[tokenID]; !ok {
			return false, nil
		}
		delete(tokens, tokenID)
		return true, nil
	}
	switch len(tokens) {
	case 0:
		return false, nil
	case 1:
		clear(tokens)
		return true, nil
	}
	return false, ErrAmbiguousToken
}

func (s *MemoryTokenStore) Count(_ context.Context, serviceName, userID string) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: token store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokensFor(serviceName, userID)), nil
}

func (s *MemoryTokenStore) tokensFor(serviceName, userID string) map[string]storedToken {
	users, ok := s.entries[strings.TrimSpace(serviceName)]
	if !ok {
		return map[string]storedToken{}
	}
	tokens, ok := users[strings.TrimSpace(userID)]
	if !ok {
		return map[string]storedToken{}
	}
	return tokens
}
