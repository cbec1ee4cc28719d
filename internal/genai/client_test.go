package genai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisisbrief/crisisbrief/internal/genai"
	"github.com/crisisbrief/crisisbrief/internal/shared"
	_ "github.com/crisisbrief/crisisbrief/testing"
)

func TestGenerateTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/generate-template", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hurricane", body["category"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"template":   "Hurricane <name> hit <area>. <unique-extra-info>.",
			"attributes": []string{"name", "area", "unique-extra-info"},
		})
	}))
	defer srv.Close()

	client := genai.NewClient(srv.URL)
	result, err := client.GenerateTemplate(context.Background(), "Hurricane", "past events text")
	require.NoError(t, err)
	assert.Contains(t, result.Template, "<name>")
	assert.Len(t, result.Attributes, 3)
}

func TestGenerateSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate-summary", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body["urls"], 2)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"summary": "Two articles condensed.",
			"title":   "Flood Hits Coastal Towns",
		})
	}))
	defer srv.Close()

	client := genai.NewClient(srv.URL)
	result, err := client.GenerateSummary(context.Background(), "Flood", []string{"https://a.example", "https://b.example"}, "")
	require.NoError(t, err)
	assert.Equal(t, "Flood Hits Coastal Towns", result.Title)
}

func TestUpstreamErrorsMapToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := genai.NewClient(srv.URL)

	_, err := client.GenerateTemplate(context.Background(), "Hurricane", "text")
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)

	assert.ErrorIs(t, client.Ping(context.Background()), shared.ErrUpstreamUnavailable)
}

func TestTransportErrorMapsToUnavailable(t *testing.T) {
	// Port 0 is never listening.
	client := genai.NewClient("http://127.0.0.1:0")
	_, err := client.GenerateSummary(context.Background(), "Flood", []string{"https://a.example"}, "")
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
}
