package model

import "time"

// Credential is a user's Google OAuth2 credential in plaintext form.
// It only lives for the duration of one request.
type Credential struct {
	UserID       string     `json:"user_id"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Expired reports whether the access token has already expired at now.
// A credential without an expiry is treated as expired.
func (c *Credential) Expired(now time.Time) bool {
	return c.Expiry == nil || !c.Expiry.After(now)
}

// ExpiresWithin reports whether the access token expires within window of now.
func (c *Credential) ExpiresWithin(now time.Time, window time.Duration) bool {
	return c.Expiry == nil || c.Expiry.Sub(now) <= window
}

// StoredCredential is the persisted form of a Credential in DynamoDB.
// Both tokens are encrypted at rest.
type StoredCredential struct {
	UserID                string     `json:"user_id" dynamodbav:"user_id"`
	EncryptedAccessToken  string     `json:"encrypted_access_token" dynamodbav:"encrypted_access_token"`
	EncryptedRefreshToken string     `json:"encrypted_refresh_token" dynamodbav:"encrypted_refresh_token"`
	Expiry                *time.Time `json:"expiry,omitempty" dynamodbav:"expiry,omitempty"`
	UpdatedAt             time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

// CredentialUpdate is a partial update; nil fields are left untouched.
type CredentialUpdate struct {
	AccessToken  *string
	RefreshToken *string
	Expiry       *time.Time
}

// PresentationResult summarizes one presentation-creation call.
type PresentationResult struct {
	PresentationID string   `json:"presentationId"`
	URL            string   `json:"url"`
	SuccessCount   int      `json:"successCount"`
	FailedSlides   []int    `json:"failedSlides"`
	Warnings       []string `json:"warnings"`
}
