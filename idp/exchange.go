package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	apperrors "github.com/greymass/account-creation-portal/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const maxTokenResponseBytes = 1 << 20

// TokenSet is the token endpoint's answer. It is only trusted once the ID
// token has been verified.
type TokenSet struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// RetryPolicy controls repeated exchange attempts. The zero value fails
// fast. Only transport failures and 5xx answers are retried; once the
// provider has answered 2xx the code is spent and is never sent again.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Exchanger trades an authorization code for a TokenSet.
type Exchanger struct {
	client *http.Client
	retry  RetryPolicy
	logger zerolog.Logger
}

func NewExchanger(client *http.Client, retry RetryPolicy, logger zerolog.Logger) *Exchanger {
	if client == nil {
		client = http.DefaultClient
	}
	return &Exchanger{
		client: client,
		retry:  retry,
		logger: logger.With().Str("component", "token_exchange").Logger(),
	}
}

// Exchange posts the authorization_code grant to the provider's token
// endpoint. opts carries extra grant parameters such as the PKCE verifier.
func (e *Exchanger) Exchange(ctx context.Context, p *Provider, code string, opts ...oauth2.AuthCodeOption) (*TokenSet, error) {
	var lastErr error
	for attempt := 0; attempt <= e.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Warn().Err(lastErr).Str("provider", p.Name).Int("attempt", attempt).Msg("retrying token exchange")
			if err := sleepContext(ctx, e.retry.Backoff*time.Duration(attempt)); err != nil {
				return nil, &apperrors.UpstreamExchangeError{Err: err}
			}
		}

		tokens, err := e.exchangeOnce(ctx, p, code, opts...)
		if err == nil {
			return tokens, nil
		}
		lastErr = err

		var upstream *apperrors.UpstreamExchangeError
		if !errors.As(err, &upstream) || !upstream.Temporary() || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (e *Exchanger) exchangeOnce(ctx context.Context, p *Provider, code string, opts ...oauth2.AuthCodeOption) (*TokenSet, error) {
	var secret string
	if p.Secret != nil {
		var err error
		if secret, err = p.Secret.ClientSecret(ctx); err != nil {
			return nil, apperrors.Wrapf(err, "client secret for %s", p.Name)
		}
	}

	answer := &answerRecorder{base: e.client.Transport}
	client := *e.client
	client.Transport = answer

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &client)
	token, err := p.OAuth2Config(secret).Exchange(ctx, code, opts...)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		switch {
		case answer.status >= 200 && answer.status < 300:
			// The provider accepted the code, so it is spent whatever went
			// wrong while decoding the answer.
			return tokenSetFromBody(answer.status, answer.body, err)
		case errors.As(err, &retrieveErr) && retrieveErr.Response != nil:
			return nil, &apperrors.UpstreamExchangeError{
				Status: retrieveErr.Response.StatusCode,
				Body:   string(retrieveErr.Body),
				Err:    err,
			}
		case answer.status != 0:
			return nil, &apperrors.UpstreamExchangeError{Status: answer.status, Body: string(answer.body), Err: err}
		}
		return nil, &apperrors.UpstreamExchangeError{Err: err}
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return nil, apperrors.ErrMissingIDToken
	}

	return &TokenSet{
		IDToken:      idToken,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}

// tokenSetFromBody reads a 2xx answer that x/oauth2 refused, typically one
// without an access_token.
func tokenSetFromBody(status int, body []byte, cause error) (*TokenSet, error) {
	var raw struct {
		IDToken      string `json:"id_token"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &apperrors.UpstreamExchangeError{Status: status, Body: string(body), Err: cause}
	}
	if raw.IDToken == "" {
		return nil, apperrors.ErrMissingIDToken
	}

	tokens := &TokenSet{
		IDToken:      raw.IDToken,
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
	}
	if raw.ExpiresIn > 0 {
		tokens.Expiry = NowTimeFunc().Add(time.Duration(raw.ExpiresIn) * time.Second)
	}
	return tokens, nil
}

// answerRecorder remembers the status and body of the token endpoint's
// answer so failures after a response are never mistaken for transport
// errors.
type answerRecorder struct {
	base   http.RoundTripper
	status int
	body   []byte
}

func (a *answerRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	base := a.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	a.status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	a.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
