package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// TokenSource wraps oauth2.TokenSource with persistence for one
// athlete connection. It refreshes tokens as needed and calls
// onRefresh so the connection row stays current; a process restart
// then resumes from the stored refresh token.
type TokenSource struct {
	config    *oauth2.Config
	token     *oauth2.Token
	onRefresh func(*oauth2.Token) error
	mu        sync.Mutex
}

// NewTokenSource creates a TokenSource for one connection's stored
// token. onRefresh may be nil when persistence isn't needed (tests).
func NewTokenSource(cfg *oauth2.Config, token *oauth2.Token, onRefresh func(*oauth2.Token) error) *TokenSource {
	return &TokenSource{
		config:    cfg,
		token:     token,
		onRefresh: onRefresh,
	}
}

// Token returns a valid token, refreshing if necessary
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	// Check if token needs refresh (with 60s buffer)
	if time.Until(ts.token.Expiry) > 60*time.Second {
		return ts.token, nil
	}

	src := ts.config.TokenSource(context.Background(), ts.token)
	newToken, err := src.Token()
	if err != nil {
		return nil, err
	}

	if ts.onRefresh != nil {
		if err := ts.onRefresh(newToken); err != nil {
			return nil, err
		}
	}

	ts.token = newToken
	return newToken, nil
}
