package notifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/italolelis/jellyfin_downloader/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifier_Notify(t *testing.T) {
	var got map[string]string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	n := notifier.NewDiscordNotifier(ts.URL, ts.Client())

	require.NoError(t, n.Notify(context.Background(), "sync finished"))
	assert.Equal(t, map[string]string{"content": "sync finished"}, got)
}

func TestDiscordNotifier_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	err := notifier.NewDiscordNotifier(ts.URL, nil).Notify(context.Background(), "hi")
	assert.ErrorContains(t, err, "webhook failed with status 429")

	err = (&notifier.DiscordNotifier{}).Notify(context.Background(), "hi")
	assert.ErrorContains(t, err, "webhook URL is not set")
}
