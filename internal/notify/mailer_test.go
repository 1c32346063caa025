package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-weather-warnings/internal/models"
)

func TestMailer_SendsOneMailPerTransition(t *testing.T) {
	var got mailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"request_id":"1"}`))
	}))
	defer srv.Close()

	m, err := NewMailer("key", "alerts@example.com", []string{"me@example.com"})
	require.NoError(t, err)
	m = m.WithEndpoint(srv.URL)

	err = m.Notify(context.Background(), models.Transition{
		Kind:      models.TransitionCancelled,
		City:      "千代田区",
		LMO:       "気象庁",
		Warning:   "大雨警報",
		OldStatus: models.StatusIssued,
		NewStatus: models.StatusCancelled,
		XMLFile:   "20260830_VPWW54_130000.xml",
	})
	require.NoError(t, err)

	assert.Equal(t, "key", got.APIKey)
	assert.Equal(t, []string{"me@example.com"}, got.To)
	assert.Equal(t, "alerts@example.com", got.Sender)
	assert.Contains(t, got.Subject, "千代田区")
	assert.Contains(t, got.Subject, "解除")
	assert.Contains(t, got.TextBody, "大雨警報")
	assert.Contains(t, got.HTMLBody, "気象庁")
}

func TestMailer_ErrorStatusSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m, err := NewMailer("key", "alerts@example.com", []string{"me@example.com"})
	require.NoError(t, err)
	m = m.WithEndpoint(srv.URL)

	err = m.Notify(context.Background(), models.Transition{
		Kind:      models.TransitionIssued,
		City:      "千代田区",
		Warning:   "大雨警報",
		NewStatus: models.StatusIssued,
	})
	require.Error(t, err)
}
