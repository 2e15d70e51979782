package models

import "time"

// Credential stores the OAuth token set for the bank account.
// It is persisted as JSON by the credential store and replaced wholesale
// on every refresh, never mutated in place.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	ObtainedAt   int64  `json:"created_at"`
}

// Valid reports whether the access token is still usable at the given
// time. The buffer keeps a token from expiring in the middle of a
// multi-step signed call.
func (c *Credential) Valid(now time.Time, buffer time.Duration) bool {
	return now.Add(buffer).Unix() < c.ExpiresAt
}

// Complete reports whether the credential carries both tokens. A partially
// written credential file yields an incomplete credential, which readers
// treat the same as an absent one.
func (c *Credential) Complete() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// TokenResponse is the wire shape of the authorization server's token
// endpoint for both the authorization-code and refresh-token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// Credential converts a token response into a stored credential.
// ExpiresAt is computed against the supplied clock so the manager can be
// tested with a fake one.
func (t *TokenResponse) Credential(now time.Time) *Credential {
	expiresIn := t.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return &Credential{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    now.Unix() + expiresIn,
		ObtainedAt:   now.Unix(),
	}
}
