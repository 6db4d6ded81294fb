package auth

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func stubValidate(t *testing.T, p *idtoken.Payload, err error) {
	t.Helper()
	orig := validateIDToken
	validateIDToken = func(_ context.Context, tok, aud string) (*idtoken.Payload, error) {
		assert.Equal(t, "tok", tok)
		assert.Equal(t, "client-1", aud)
		return p, err
	}
	t.Cleanup(func() { validateIDToken = orig })
}

func payload(mut func(p *idtoken.Payload)) *idtoken.Payload {
	p := &idtoken.Payload{
		Issuer:   "https://accounts.google.com",
		Audience: "client-1",
		Subject:  "123",
		Expires:  time.Now().Add(time.Hour).Unix(),
		Claims: map[string]interface{}{
			"email":          "a@example.com",
			"email_verified": true,
			"name":           "Alice",
		},
	}
	if mut != nil {
		mut(p)
	}
	return p
}

func TestGoogleVerifier_Valid(t *testing.T) {
	stubValidate(t, payload(nil), nil)

	got, err := NewGoogleVerifier("client-1").Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, &GoogleIdentity{Subject: "123", Email: "a@example.com", Name: "Alice"}, got)
}

func TestGoogleVerifier_BareIssuerAccepted(t *testing.T) {
	stubValidate(t, payload(func(p *idtoken.Payload) { p.Issuer = "accounts.google.com" }), nil)

	_, err := NewGoogleVerifier("client-1").Verify(context.Background(), "tok")
	assert.NoError(t, err)
}

func TestGoogleVerifier_Rejections(t *testing.T) {
	tests := []struct {
		name string
		p    *idtoken.Payload
		err  error
	}{
		{name: "library rejects token", err: errors.New("idtoken: token expired")},
		{name: "foreign issuer", p: payload(func(p *idtoken.Payload) { p.Issuer = "https://evil.example.com" })},
		{name: "wrong audience", p: payload(func(p *idtoken.Payload) { p.Audience = "other" })},
		{name: "unverified email", p: payload(func(p *idtoken.Payload) { p.Claims["email_verified"] = false })},
		{name: "no subject", p: payload(func(p *idtoken.Payload) { p.Subject = "" })},
		{name: "no email", p: payload(func(p *idtoken.Payload) { delete(p.Claims, "email") })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubValidate(t, tt.p, tt.err)
			_, err := NewGoogleVerifier("client-1").Verify(context.Background(), "tok")
			assert.Equal(t, CodeInvalidIDToken, Code(err))
		})
	}
}

func TestGoogleVerifier_KeyFetchFailureIsNotAProviderError(t *testing.T) {
	stubValidate(t, nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")})

	_, err := NewGoogleVerifier("client-1").Verify(context.Background(), "tok")
	require.Error(t, err)
	assert.Empty(t, Code(err))
}

func TestGoogleVerifier_EmptyToken(t *testing.T) {
	orig := validateIDToken
	t.Cleanup(func() { validateIDToken = orig })
	validateIDToken = func(context.Context, string, string) (*idtoken.Payload, error) {
		t.Fatal("validator called for an empty token")
		return nil, nil
	}

	_, err := NewGoogleVerifier("client-1").Verify(context.Background(), "  ")
	assert.Equal(t, CodeInvalidIDToken, Code(err))
}

func TestGoogleVerifier_Disabled(t *testing.T) {
	_, err := NewGoogleVerifier("").Verify(context.Background(), "tok")
	assert.Equal(t, CodeProviderNotEnabled, Code(err))
}
