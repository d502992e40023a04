package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logo.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		case "/big":
			_, _ = w.Write(make([]byte, 64))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(100*time.Millisecond, 32)

	t.Run("success", func(t *testing.T) {
		body, contentType, err := client.Fetch(context.Background(), server.URL+"/logo.png")
		require.NoError(t, err)
		assert.Equal(t, []byte("png-bytes"), body)
		assert.Equal(t, "image/png", contentType)
	})

	t.Run("not found", func(t *testing.T) {
		_, _, err := client.Fetch(context.Background(), server.URL+"/missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 404")
	})

	t.Run("too large", func(t *testing.T) {
		_, _, err := client.Fetch(context.Background(), server.URL+"/big")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds 32 bytes")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := client.Fetch(ctx, server.URL+"/logo.png")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("timeout", func(t *testing.T) {
		_, _, err := client.Fetch(context.Background(), server.URL+"/slow")
		assert.Error(t, err)
	})
}
