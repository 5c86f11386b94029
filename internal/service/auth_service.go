package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"careerprep/internal/domain"
)

const validatedTokenCacheTTL = 30 * time.Second

type validatedTokenEntry struct {
	user      *domain.SupabaseUser
	expiresAt time.Time
}

type authService struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
	now            func() time.Time

	cacheMu sync.RWMutex
	cache   map[string]validatedTokenEntry
}

func NewAuthService(
	supabaseClient domain.SupabaseClient,
	logger domain.Logger,
) *authService {
	return &authService{
		supabaseClient: supabaseClient,
		logger:         logger,
		now:            time.Now,
		cache:          make(map[string]validatedTokenEntry),
	}
}

// ValidateToken validates a bearer token with Supabase. Successful validations
// are cached briefly so the per-second polling of the challenge view does not
// hit the auth server on every request.
func (s *authService) ValidateToken(token string) (*domain.SupabaseUser, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", domain.ErrInvalidToken)
	}

	key := tokenCacheKey(token)
	now := s.now()
	s.cacheMu.RLock()
	entry, ok := s.cache[key]
	s.cacheMu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.user, nil
	}

	user, err := s.supabaseClient.ValidateToken(token)
	if err != nil {
		s.logger.Error("Failed to validate token with Supabase", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	s.cacheMu.Lock()
	for k, e := range s.cache {
		if !now.Before(e.expiresAt) {
			delete(s.cache, k)
		}
	}
	s.cache[key] = validatedTokenEntry{user: user, expiresAt: now.Add(validatedTokenCacheTTL)}
	s.cacheMu.Unlock()

	return user, nil
}

func tokenCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
