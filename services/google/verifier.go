// Package googlesvc verifies Google sign-in ID tokens.
package googlesvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/smartcampus/campus/core"
)

const tokenInfoEndpoint = "https://oauth2.googleapis.com/tokeninfo"

var (
	// errors
	ErrInvalidToken  = errors.New("invalid google token")
	ErrNotConfigured = errors.New("google sign-in is not configured")
)

// Identity is what a verified ID token tells about its holder.
type Identity struct {
	GoogleID string
	Email    string
	Name     string
}

type Verifier interface {
	// Verify returns ErrInvalidToken for a token that is malformed, expired,
	// issued for another client or carrying an unverified email.
	Verify(ctx context.Context, idToken string) (Identity, error)
}

type tokenInfoVerifier struct {
	clientID string
	endpoint string
	client   *rest.Client
}

var _ Verifier = (*tokenInfoVerifier)(nil)

func NewVerifier(conf *core.Config) Verifier {
	return newTokenInfoVerifier(conf.GoogleClientID, tokenInfoEndpoint, &http.Client{Timeout: 10 * time.Second})
}

func newTokenInfoVerifier(clientID, endpoint string, httpClient *http.Client) *tokenInfoVerifier {
	return &tokenInfoVerifier{
		clientID: clientID,
		endpoint: endpoint,
		client:   &rest.Client{HTTPClient: httpClient},
	}
}

type tokenInfo struct {
	Aud           string     `json:"aud"`
	Sub           string     `json:"sub"`
	Email         string     `json:"email"`
	EmailVerified flexBool   `json:"email_verified"`
	Name          string     `json:"name"`
	Exp           flexString `json:"exp"`
}

func (v *tokenInfoVerifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	if v.clientID == "" {
		return Identity{}, ErrNotConfigured
	}
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return Identity{}, ErrInvalidToken
	}

	resp, err := v.client.SendWithContext(ctx, rest.Request{
		Method:      rest.Get,
		BaseURL:     v.endpoint,
		QueryParams: map[string]string{"id_token": idToken},
	})
	if err != nil {
		return Identity{}, errors.Wrap(err, "calling google tokeninfo")
	}
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return Identity{}, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return Identity{}, errors.Errorf("google tokeninfo: unexpected status %d", resp.StatusCode)
	}

	var info tokenInfo
	if err = json.Unmarshal([]byte(resp.Body), &info); err != nil {
		return Identity{}, errors.Wrap(err, "decoding google tokeninfo")
	}
	if info.Aud != v.clientID || info.Sub == "" || info.Email == "" || !bool(info.EmailVerified) {
		return Identity{}, ErrInvalidToken
	}
	if exp, err := strconv.ParseInt(string(info.Exp), 10, 64); err == nil && time.Unix(exp, 0).Before(time.Now()) {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		GoogleID: info.Sub,
		Email:    core.CleanString(info.Email, true /* lower */),
		Name:     info.Name,
	}, nil
}

// flexBool accepts both true and "true".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	val, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b = flexBool(val)
	return nil
}

// flexString accepts both numbers and strings.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	*s = flexString(strings.Trim(string(data), `"`))
	return nil
}

type verifierMock struct {
	identities map[string]Identity
}

// NewVerifierMock returns a Verifier knowing only `identities`, keyed by token.
func NewVerifierMock(identities map[string]Identity) Verifier {
	return &verifierMock{identities: identities}
}

func (v *verifierMock) Verify(_ context.Context, idToken string) (Identity, error) {
	if id, ok := v.identities[idToken]; ok {
		return id, nil
	}
	return Identity{}, ErrInvalidToken
}
