package googlesvc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenInfoVerifier_Verify(t *testing.T) {
	exp := strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)
	past := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)

	responses := map[string]struct {
		code int
		body string
	}{
		"good":       {http.StatusOK, fmt.Sprintf(`{"aud":"client","sub":"123","email":"Ada@Test.cd","email_verified":"true","name":"Ada","exp":"%s"}`, exp)},
		"boolean":    {http.StatusOK, fmt.Sprintf(`{"aud":"client","sub":"123","email":"ada@test.cd","email_verified":true,"exp":%s}`, exp)},
		"other-aud":  {http.StatusOK, fmt.Sprintf(`{"aud":"other","sub":"123","email":"ada@test.cd","email_verified":"true","exp":"%s"}`, exp)},
		"unverified": {http.StatusOK, fmt.Sprintf(`{"aud":"client","sub":"123","email":"ada@test.cd","email_verified":"false","exp":"%s"}`, exp)},
		"expired":    {http.StatusOK, fmt.Sprintf(`{"aud":"client","sub":"123","email":"ada@test.cd","email_verified":"true","exp":"%s"}`, past)},
		"rejected":   {http.StatusBadRequest, `{"error":"invalid_token"}`},
		"down":       {http.StatusServiceUnavailable, ``},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, ok := responses[r.URL.Query().Get("id_token")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(resp.code)
		_, _ = w.Write([]byte(resp.body))
	}))
	defer srv.Close()

	v := newTokenInfoVerifier("client", srv.URL, srv.Client())
	ctx := context.Background()

	id, err := v.Verify(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, Identity{GoogleID: "123", Email: "ada@test.cd", Name: "Ada"}, id)

	id, err = v.Verify(ctx, "boolean")
	require.NoError(t, err)
	assert.Equal(t, "123", id.GoogleID)

	for _, token := range []string{"other-aud", "unverified", "expired", "rejected", "unknown", " "} {
		_, err = v.Verify(ctx, token)
		assert.Equal(t, ErrInvalidToken, errors.Cause(err), token)
	}

	_, err = v.Verify(ctx, "down")
	assert.Error(t, err)
	assert.NotEqual(t, ErrInvalidToken, errors.Cause(err))

	_, err = newTokenInfoVerifier("", srv.URL, srv.Client()).Verify(ctx, "good")
	assert.Equal(t, ErrNotConfigured, err)
}

func TestVerifierMock(t *testing.T) {
	v := NewVerifierMock(map[string]Identity{"tok": {GoogleID: "g1", Email: "a@test.cd"}})
	id, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "g1", id.GoogleID)

	_, err = v.Verify(context.Background(), "nope")
	assert.Equal(t, ErrInvalidToken, err)
}
