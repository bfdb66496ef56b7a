package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var (
	// ErrInvalidToken: Google rechazo el access token (respuesta 4xx).
	ErrInvalidToken = errors.New("google access token rejected")
	// ErrUnavailable: no hubo respuesta util tras agotar los reintentos.
	ErrUnavailable = errors.New("google userinfo unavailable")
)

// Profile es el subconjunto del userinfo de Google que usa el login.
type Profile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

// HTTPClient permite inyectar un cliente distinto en tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Verifier consulta el endpoint userinfo con el access token del cliente.
type Verifier struct {
	logger     *zap.Logger
	httpClient HTTPClient
	url        string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

type Option func(*Verifier)

func WithHTTPClient(c HTTPClient) Option {
	return func(v *Verifier) {
		if c != nil {
			v.httpClient = c
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(v *Verifier) {
		v.backoff = d
	}
}

func NewVerifier(logger *zap.Logger, url string, timeout time.Duration, maxRetries int, opts ...Option) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(url) == "" {
		url = DefaultUserInfoURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	v := &Verifier{
		logger:     logger,
		httpClient: &http.Client{},
		url:        url,
		timeout:    timeout,
		maxRetries: maxRetries,
		backoff:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify devuelve el perfil asociado al token. Reintenta ante errores de red,
// 5xx y 429; cualquier otro 4xx es ErrInvalidToken sin reintento.
func (v *Verifier) Verify(ctx context.Context, accessToken string) (Profile, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Profile{}, ErrInvalidToken
	}

	var lastErr error
	for attempt := 0; attempt <= v.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Profile{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(v.backoff * time.Duration(attempt)):
			}
		}

		profile, retry, err := v.fetch(ctx, accessToken)
		if err == nil {
			return profile, nil
		}
		if !retry {
			return Profile{}, err
		}
		lastErr = err
		v.logger.Warn("google userinfo attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return Profile{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (v *Verifier) fetch(ctx context.Context, accessToken string) (Profile, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return Profile{}, false, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Profile{}, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, true, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return Profile{}, true, fmt.Errorf("google userinfo status %d", resp.StatusCode)
	default:
		return Profile{}, false, ErrInvalidToken
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return Profile{}, false, fmt.Errorf("decode google userinfo: %w", err)
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	return profile, false, nil
}
