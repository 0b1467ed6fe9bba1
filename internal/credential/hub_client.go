package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidTokenResponse = errors.New("invalid token response")

// Token is what the hub hands out. Lifetime is the server-declared
// expires_in; ExpiresAt is only set when the lifetime is missing and the
// token itself carries an exp claim.
type Token struct {
	AccessToken string
	Lifetime    time.Duration
	ExpiresAt   time.Time
}

// TokenSource obtains a fresh hub token.
type TokenSource interface {
	FetchToken(ctx context.Context) (Token, error)
}

type tokenRequest struct {
	ClientID string `json:"client_id"`
	Secret   string `json:"secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HubClient requests access tokens from the hub's token endpoint.
type HubClient struct {
	http     *resty.Client
	endpoint string
	clientID string
	secret   string
}

// NewHubClient builds a client for endpoint. Failed calls are not retried
// here; the manager reschedules them.
func NewHubClient(endpoint, clientID, secret string, timeout time.Duration) *HubClient {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HubClient{
		http:     client,
		endpoint: endpoint,
		clientID: clientID,
		secret:   secret,
	}
}

func (c *HubClient) FetchToken(ctx context.Context) (Token, error) {
	var body tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(tokenRequest{ClientID: c.clientID, Secret: c.secret}).
		SetResult(&body).
		Post(c.endpoint)
	if err != nil {
		return Token{}, fmt.Errorf("failed to call token endpoint: %w", err)
	}
	if resp.IsError() {
		return Token{}, fmt.Errorf("token endpoint returned %d: %w", resp.StatusCode(), ErrInvalidTokenResponse)
	}
	if body.AccessToken == "" {
		return Token{}, fmt.Errorf("empty access_token: %w", ErrInvalidTokenResponse)
	}

	token := Token{AccessToken: body.AccessToken}
	if body.ExpiresIn > 0 {
		token.Lifetime = time.Duration(body.ExpiresIn) * time.Second
		return token, nil
	}

	exp, ok := jwtExpiry(body.AccessToken)
	if !ok {
		return Token{}, fmt.Errorf("no expires_in and no exp claim: %w", ErrInvalidTokenResponse)
	}
	token.ExpiresAt = exp
	return token, nil
}

// jwtExpiry reads the exp claim of a JWT without verifying its signature.
func jwtExpiry(raw string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
