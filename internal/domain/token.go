package domain

import "time"

// SocialToken: one user's OAuth credential for one platform. Owned
// exclusively by the credential manager: replaced wholesale on refresh,
// deleted when refresh fails irrecoverably.
type SocialToken struct {
	UserID       string    `json:"userId"`
	Platform     Platform  `json:"platform"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the access token is past its expiry.
func (t SocialToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// ExpiresWithin reports whether the token expires inside the given window.
// Used to refresh eagerly before the token actually lapses.
func (t SocialToken) ExpiresWithin(now time.Time, window time.Duration) bool {
	return t.ExpiresAt.Before(now.Add(window))
}
