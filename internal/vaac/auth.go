package vaac

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/voicemetrics/vaac-pipeline/pkg/config"
	perrors "github.com/voicemetrics/vaac-pipeline/pkg/errors"
)

// TokenProvider supplies a bearer token for the analytics API on demand.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// OAuthTokenProvider obtains tokens with the resource-owner-password grant
// against the tenant's identity endpoint, caching each token until shortly
// before it expires.
type OAuthTokenProvider struct {
	cfg   oauth2.Config
	creds config.AuthConfig

	mu     sync.Mutex
	cached *oauth2.Token
}

// expirySlack is how long before actual expiry a cached token is considered
// stale, so a token never dies mid-request.
const expirySlack = 30 * time.Second

// NewOAuthTokenProvider builds a provider from the auth configuration.
func NewOAuthTokenProvider(auth config.AuthConfig) *OAuthTokenProvider {
	return &OAuthTokenProvider{
		cfg: oauth2.Config{
			ClientID: auth.ClientID,
			Scopes:   []string{auth.Scope},
			Endpoint: oauth2.Endpoint{
				TokenURL: auth.ResolvedTokenURL(),
			},
		},
		creds: auth,
	}
}

// Token returns a valid bearer token, reusing the cached one when possible.
func (p *OAuthTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil && p.cached.Expiry.After(time.Now().Add(expirySlack)) {
		return p.cached.AccessToken, nil
	}
	token, err := p.cfg.PasswordCredentialsToken(ctx, p.creds.Username, p.creds.Password)
	if err != nil {
		// A definitive rejection from the token endpoint is an auth failure;
		// transport errors and 5xx responses are worth retrying within the run.
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
			return "", fmt.Errorf("%w: token request: %v", perrors.ErrAuth, err)
		}
		return "", fmt.Errorf("%w: token request: %v", perrors.ErrTransientQuery, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token in response", perrors.ErrAuth)
	}
	p.cached = token
	return token.AccessToken, nil
}

// StaticTokenProvider returns a fixed token; used in tests and local tooling.
type StaticTokenProvider string

func (t StaticTokenProvider) Token(context.Context) (string, error) {
	return string(t), nil
}
