package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/api/idtoken"
)

// validateIDToken checks the signature against Google's published keys and
// the aud and exp claims. It is a variable so tests can stub the network.
var validateIDToken = idtoken.Validate

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// GoogleIdentity is the verified content of a Google ID token.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// IDTokenVerifier checks a social sign-in token and returns who it belongs to.
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// GoogleVerifier validates Google ID tokens issued for ClientID.
type GoogleVerifier struct {
	ClientID string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{ClientID: clientID}
}

func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	if v.ClientID == "" {
		return nil, NewProviderError(CodeProviderNotEnabled, nil)
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, NewProviderError(CodeInvalidIDToken, fmt.Errorf("empty id token"))
	}

	p, err := validateIDToken(ctx, idToken, v.ClientID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// failing to fetch the signing keys is an outage, not a bad token
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, fmt.Errorf("fetch google signing keys: %w", err)
		}
		return nil, NewProviderError(CodeInvalidIDToken, err)
	}

	email, _ := p.Claims["email"].(string)
	verified, _ := p.Claims["email_verified"].(bool)
	name, _ := p.Claims["name"].(string)

	switch {
	case !googleIssuers[p.Issuer]:
		return nil, NewProviderError(CodeInvalidIDToken, fmt.Errorf("unexpected issuer %q", p.Issuer))
	case p.Audience != v.ClientID:
		return nil, NewProviderError(CodeInvalidIDToken, fmt.Errorf("audience mismatch"))
	case p.Subject == "" || email == "":
		return nil, NewProviderError(CodeInvalidIDToken, fmt.Errorf("token lacks subject or email"))
	case !verified:
		return nil, NewProviderError(CodeInvalidIDToken, fmt.Errorf("email not verified"))
	}

	return &GoogleIdentity{Subject: p.Subject, Email: email, Name: name}, nil
}

var _ IDTokenVerifier = (*GoogleVerifier)(nil)
