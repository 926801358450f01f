package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTokenInfoEndpoint is Google's token-introspection endpoint.
const DefaultTokenInfoEndpoint = "https://oauth2.googleapis.com/tokeninfo"

const maxTokenInfoBody = 1 << 20

// TokenInfoConfig configures a TokenInfoVerifier.
type TokenInfoConfig struct {
	Endpoint   string
	ClientID   string
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Now        func() time.Time
}

// TokenInfoVerifier validates assertions by asking the provider's tokeninfo endpoint.
type TokenInfoVerifier struct {
	endpoint *url.URL
	clientID string
	client   *http.Client
	logger   zerolog.Logger
	now      func() time.Time
}

// NewTokenInfoVerifier validates cfg. An empty ClientID is rejected: the audience
// check is mandatory.
func NewTokenInfoVerifier(cfg TokenInfoConfig) (*TokenInfoVerifier, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errors.New("identity: client id is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultTokenInfoEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("identity: invalid tokeninfo endpoint %q", endpoint)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenInfoVerifier{
		endpoint: u,
		clientID: clientID,
		client:   client,
		logger:   cfg.Logger,
		now:      now,
	}, nil
}

// tokenInfo is the subset of the tokeninfo response this package reads.
// Google encodes numeric fields as JSON strings.
type tokenInfo struct {
	Subject  string    `json:"sub"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Picture  string    `json:"picture"`
	Audience string    `json:"aud"`
	Expiry   flexInt64 `json:"exp"`
}

type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt64(n)
	return nil
}

// Verify calls the tokeninfo endpoint once and maps the answer to a Principal.
func (v *TokenInfoVerifier) Verify(ctx context.Context, rawAssertion string) (Principal, error) {
	raw := strings.TrimSpace(rawAssertion)
	if raw == "" {
		return Principal{}, ErrInvalidAssertion
	}

	u := *v.endpoint
	q := u.Query()
	q.Set("id_token", raw)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Warn().Err(err).Msg("identity.provider_unreachable")
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxTokenInfoBody))
		v.logger.Warn().Int("status", resp.StatusCode).Msg("identity.assertion_rejected")
		return Principal{}, fmt.Errorf("%w: provider status %d", ErrInvalidAssertion, resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTokenInfoBody)).Decode(&info); err != nil {
		v.logger.Warn().Err(err).Msg("identity.malformed_response")
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	if info.Audience != v.clientID {
		v.logger.Warn().Str("aud", info.Audience).Msg("identity.audience_mismatch")
		return Principal{}, fmt.Errorf("%w: got %q", ErrAudienceMismatch, info.Audience)
	}
	if info.Subject == "" {
		v.logger.Warn().Msg("identity.missing_subject")
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidAssertion)
	}
	if info.Expiry > 0 && !v.now().Before(time.Unix(int64(info.Expiry), 0)) {
		v.logger.Warn().Str("sub", info.Subject).Msg("identity.assertion_expired")
		return Principal{}, fmt.Errorf("%w: assertion expired", ErrInvalidAssertion)
	}

	return Principal{
		SubjectID:   info.Subject,
		Email:       info.Email,
		DisplayName: info.Name,
		AvatarURL:   info.Picture,
	}, nil
}
