package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// appleTokenURL is Apple's OAuth token endpoint. Native Apple Sign-In hands
// the client an authorization code; the server exchanges it here for a
// refresh token, kept only so the account can be revoked with Apple on
// deletion (App Store Review Guideline 5.1.1(v)).
const appleTokenURL = "https://appleid.apple.com/auth/token"

// AppleProvider wraps golang.org/x/oauth2 for the Apple authorization-code
// exchange. Identity comes from the native sign-in; the server only needs
// the refresh token.
type AppleProvider struct {
	config *oauth2.Config
}

// NewAppleProvider creates an AppleProvider. clientID is the app's Services
// ID; clientSecret is the signed JWT Apple requires as a client secret.
func NewAppleProvider(clientID, clientSecret string) *AppleProvider {
	return &AppleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  appleTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// Exchange trades the authorization code for a refresh token.
func (p *AppleProvider) Exchange(ctx context.Context, code string) (string, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("auth: exchanging Apple authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return "", fmt.Errorf("auth: Apple response carried no refresh token")
	}
	return token.RefreshToken, nil
}
