package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnpro/crew-ops/internal/config"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

func newFakeOllama(t *testing.T, generate http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	if generate != nil {
		mux.HandleFunc("/api/generate", generate)
	}
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest","model":"llama3.2:latest"}]}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGenerate(t *testing.T) {
	var got map[string]interface{}
	server := newFakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2:latest","response":"<h2>Steps</h2>","done":true}` + "\n"))
	})

	client, err := NewClient(&config.AIConfig{Host: server.URL, Model: "llama3.2:latest", Temperature: 0.3}, logger.Nop())
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), "write a procedure")
	require.NoError(t, err)
	assert.Equal(t, "<h2>Steps</h2>", out)

	assert.Equal(t, "llama3.2:latest", got["model"])
	assert.Equal(t, "write a procedure", got["prompt"])
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, "llama3.2:latest", client.Model())
}

func TestGenerate_ServerError(t *testing.T) {
	server := newFakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	})

	client, err := NewClient(&config.AIConfig{Host: server.URL, Model: "missing"}, logger.Nop())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hi")
	assert.Error(t, err)
}

func TestIsModelAvailable(t *testing.T) {
	server := newFakeOllama(t, nil)

	client, err := NewClient(&config.AIConfig{Host: server.URL, Model: "llama3.2:latest"}, logger.Nop())
	require.NoError(t, err)
	assert.NoError(t, client.IsModelAvailable(context.Background()))

	client, err = NewClient(&config.AIConfig{Host: server.URL, Model: "mistral"}, logger.Nop())
	require.NoError(t, err)
	err = client.IsModelAvailable(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llama3.2:latest")
}

func TestNewClient_BadHost(t *testing.T) {
	_, err := NewClient(&config.AIConfig{Host: "://nope"}, logger.Nop())
	assert.Error(t, err)
}
