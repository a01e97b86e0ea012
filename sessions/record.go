// Package sessions turns a verified sign-in into the self-contained,
// encrypted cookie the rest of the site reads its session from.
package sessions

import (
	"time"

	"github.com/greymass/account-creation-portal/idp"
)

// Record is the session payload. Field names follow the JWT session token
// the site's session readers already understand.
type Record struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Picture      *string `json:"picture"`
	Subject      string  `json:"sub"`
	AccessToken  string  `json:"access_token,omitempty"`
	RefreshToken string  `json:"refresh_token,omitempty"`
}

// Build maps verified claims and the tokens they came with into a Record.
// The display name falls back to the email; Apple sends no name claim.
func Build(claims *idp.IdentityClaims, tokens *idp.TokenSet) Record {
	record := Record{
		Name:    claims.Email,
		Email:   claims.Email,
		Subject: claims.Subject,
	}
	if claims.Name != "" {
		record.Name = claims.Name
	}
	if claims.Picture != "" {
		picture := claims.Picture
		record.Picture = &picture
	}
	if tokens != nil {
		record.AccessToken = tokens.AccessToken
		record.RefreshToken = tokens.RefreshToken
	}
	return record
}

// Session is a decoded cookie: the record plus its validity window.
type Session struct {
	Record
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
