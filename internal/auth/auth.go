package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/youruser/cochat/internal/logging"
	"github.com/youruser/cochat/internal/transport"
)

var (
	ErrRejected = errors.New("token exchange rejected")

	log = logging.Get()
)

// expiryMargin re-exchanges slightly before the reported expiry so an
// in-flight stream never straddles a dead session token.
const expiryMargin = 120 * time.Second

// Getter is the slice of the transport the exchanger needs.
type Getter interface {
	Get(ctx context.Context, url string, headers map[string]string) (transport.Response, error)
}

// Exchanger trades a long-lived OAuth token for short-lived session tokens
// and caches the current one until it nears expiry.
type Exchanger struct {
	mu      sync.Mutex
	oauth   string
	url     string
	http    Getter
	token   string
	expires time.Time
	now     func() time.Time
}

// New creates an Exchanger. url is the session-token endpoint.
func New(oauth, url string, http Getter) *Exchanger {
	return &Exchanger{
		oauth: oauth,
		url:   url,
		http:  http,
		now:   time.Now,
	}
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // unix seconds
}

// Token returns a valid session token, exchanging the OAuth token if the
// cached one is missing or about to expire.
func (e *Exchanger) Token(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.token != "" && e.now().Before(e.expires.Add(-expiryMargin)) {
		return e.token, nil
	}

	log.Debug("Exchanging OAuth token for session token")

	resp, err := e.http.Get(ctx, e.url, map[string]string{
		"Authorization": "token " + e.oauth,
	})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		log.Error("Token exchange failed: %d - %s", resp.Status, string(resp.Body))
		return "", fmt.Errorf("%w: %d - %s", ErrRejected, resp.Status, string(resp.Body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("%w: empty token in response", ErrRejected)
	}

	e.token = tr.Token
	e.expires = time.Unix(tr.ExpiresAt, 0)
	log.Debug("Session token valid until %s", e.expires.Format(time.RFC3339))
	return e.token, nil
}
