package credentials

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/valkey-io/valkey-go"

	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	"github.com/rendoarsandi/content-boost-sub002/internal/valkeyx"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// Store keeps social tokens in Valkey, one key per (platform, user). Tokens
// are replaced wholesale: there is no partial update.
type Store struct {
	client valkey.Client
}

// NewStore creates a token store.
func NewStore(client valkey.Client) *Store {
	return &Store{client: client}
}

func tokenKey(platform domain.Platform, userID string) string {
	return valkeyx.BuildKey2(constants.KeyPrefix.Token, string(platform), userID)
}

// Get loads a token, returning nil when none is stored.
func (s *Store) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.SocialToken, error) {
	key := tokenKey(platform, userID)
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkeyx.IsNil(err) {
			return nil, nil
		}
		return nil, apperrors.NewCacheError("token_get", key, err)
	}
	var token domain.SocialToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, apperrors.NewCacheError("token_decode", key, err)
	}
	return &token, nil
}

// Set stores a token, replacing any previous one.
func (s *Store) Set(ctx context.Context, token domain.SocialToken) error {
	key := tokenKey(token.Platform, token.UserID)
	raw, err := json.Marshal(token)
	if err != nil {
		return apperrors.NewCacheError("token_encode", key, err)
	}
	cmd := s.client.B().Set().Key(key).Value(string(raw)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return apperrors.NewCacheError("token_set", key, err)
	}
	return nil
}

// Delete removes a token; the user must re-run the OAuth flow afterwards.
func (s *Store) Delete(ctx context.Context, userID string, platform domain.Platform) error {
	key := tokenKey(platform, userID)
	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return apperrors.NewCacheError("token_delete", key, err)
	}
	return nil
}
