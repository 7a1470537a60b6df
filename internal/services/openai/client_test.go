package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"plenary/internal/config"
	"plenary/internal/services"
	"plenary/internal/services/openai"
)

func newTestClient(t *testing.T, endpoint string) *openai.Client {
	t.Helper()
	cfg := config.Default().OpenAI
	cfg.APIKey = "test-key"
	cfg.Endpoint = endpoint
	cfg.EmbeddingDimensions = 3
	cfg.EmbeddingBatchSize = 4
	client, err := openai.NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	cfg := config.Default().OpenAI
	cfg.Endpoint = "https://example.openai.azure.com"
	if _, err := openai.NewClient(cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTranscribeParsesVerboseJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "test-key" {
			t.Errorf("missing api-key header")
		}
		if !strings.Contains(r.URL.Path, "audio/transcriptions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("unexpected response_format %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"text":     "Good morning. The session is open.",
			"language": "en",
			"duration": 12.5,
			"segments": []map[string]any{
				{"id": 0, "start": 0.0, "end": 4.2, "text": " Good morning."},
				{"id": 1, "start": 4.2, "end": 12.5, "text": "The session is open."},
			},
		})
	}))
	defer server.Close()

	audio := filepath.Join(t.TempDir(), "session.m4a")
	if err := os.WriteFile(audio, []byte("fake audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	client := newTestClient(t, server.URL)
	transcript, err := client.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript.Language != "en" || transcript.Duration != 12.5 {
		t.Fatalf("unexpected transcript header: %+v", transcript)
	}
	if len(transcript.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(transcript.Segments))
	}
	if transcript.Segments[0].Text != "Good morning." {
		t.Fatalf("expected trimmed segment text, got %q", transcript.Segments[0].Text)
	}
	if transcript.WordCount() != 6 {
		t.Fatalf("expected 6 words, got %d", transcript.WordCount())
	}
}

func TestTranscribeMissingFileIsTerminal(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")
	_, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.m4a"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("missing audio must not be retryable")
	}
}

func TestExtractEntitiesToleratesCodeFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := "```json\n{\"speakers\":[{\"name\":\"Amb. Rivera\",\"country\":\"Chile\"},{\"name\":\"amb. rivera\"}],\"topics\":[\"climate finance\",\" climate finance \"],\"organizations\":[],\"documents\":[\"A/RES/76/300\"],\"locations\":[]}\n```"
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	entities, err := client.ExtractEntities(context.Background(), "transcript text")
	if err != nil {
		t.Fatalf("ExtractEntities failed: %v", err)
	}
	if len(entities.Speakers) != 1 || entities.Speakers[0].Name != "Amb. Rivera" {
		t.Fatalf("expected deduplicated speakers, got %+v", entities.Speakers)
	}
	if len(entities.Topics) != 1 {
		t.Fatalf("expected deduplicated topics, got %+v", entities.Topics)
	}
	if len(entities.Documents) != 1 || entities.Documents[0] != "A/RES/76/300" {
		t.Fatalf("unexpected documents: %+v", entities.Documents)
	}
}

func TestExtractEntitiesFoldsFullModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := `{
			"speakers":[{"name":"Amb. Rivera","country":"Chile","role":"Permanent Representative","organization":" Ministry of Foreign Affairs "}],
			"countries":["Chile","Kenya"," chile "],
			"sdgs":[{"number":13,"context":" climate action financing "},{"number":13,"context":"repeat"},{"number":0},{"number":18}],
			"organizations":["UNDP"],
			"topics":["climate finance"],
			"documents":["A/RES/76/300"],
			"locations":["Geneva"],
			"treaties":["Paris Agreement","paris agreement"],
			"key_decisions":["Adopted the draft resolution without a vote"]
		}`
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	entities, err := client.ExtractEntities(context.Background(), "transcript text")
	if err != nil {
		t.Fatalf("ExtractEntities failed: %v", err)
	}
	if entities.Speakers[0].Organization != "Ministry of Foreign Affairs" {
		t.Fatalf("unexpected speaker organization: %+v", entities.Speakers)
	}
	if len(entities.Countries) != 2 {
		t.Fatalf("expected deduplicated countries, got %+v", entities.Countries)
	}
	if len(entities.SDGs) != 1 || entities.SDGs[0].Number != 13 {
		t.Fatalf("expected one in-range goal, got %+v", entities.SDGs)
	}
	if entities.SDGs[0].Context != "climate action financing" {
		t.Fatalf("unexpected goal context: %q", entities.SDGs[0].Context)
	}
	if len(entities.Treaties) != 1 || entities.Treaties[0] != "Paris Agreement" {
		t.Fatalf("unexpected treaties: %+v", entities.Treaties)
	}
	if len(entities.KeyDecisions) != 1 {
		t.Fatalf("unexpected key decisions: %+v", entities.KeyDecisions)
	}
}

func TestSummarizeIncludesTitle(t *testing.T) {
	var captured string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		captured = payload.Messages[len(payload.Messages)-1].Content
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "A short neutral summary."}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	summary, err := client.Summarize(context.Background(), "General Debate", "transcript body")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary != "A short neutral summary." {
		t.Fatalf("unexpected summary: %q", summary)
	}
	if !strings.Contains(captured, "Session title: General Debate") {
		t.Fatalf("expected title in prompt, got %q", captured)
	}
}

func TestEmbedBatchOrdersAndValidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Return embeddings out of order; the client must reorder by index.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{4, 5, 6}},
				{"index": 0, "embedding": []float32{1, 2, 3}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	vectors, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][0] != 4 {
		t.Fatalf("expected index-ordered vectors, got %+v", vectors)
	}
}

func TestEmbedBatchRejectsOversizedBatch(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")
	_, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEmbedBatchRejectsDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 0, "embedding": []float32{1, 2}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.EmbedBatch(context.Background(), []string{"a"}); !errors.Is(err, services.ErrEmbedding) {
		t.Fatalf("expected embedding error, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		marker    error
		retryable bool
	}{
		{"unauthorized is terminal", http.StatusUnauthorized, services.ErrConfiguration, false},
		{"not found is terminal", http.StatusNotFound, services.ErrNotFound, false},
		{"bad request is terminal", http.StatusBadRequest, services.ErrValidation, false},
		{"rate limit is retryable", http.StatusTooManyRequests, services.ErrExtraction, true},
		{"server error is retryable", http.StatusInternalServerError, services.ErrExtraction, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.ExtractEntities(context.Background(), "text")
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
			if services.IsRetryable(err) != tc.retryable {
				t.Fatalf("retryable=%v, want %v (err=%v)", services.IsRetryable(err), tc.retryable, err)
			}
		})
	}
}

func TestDecodeModelJSONExtractsEmbeddedObject(t *testing.T) {
	var parsed struct {
		OK bool `json:"ok"`
	}
	err := openai.DecodeModelJSON("Here is the result: {\"ok\": true} as requested.", &parsed)
	if err != nil {
		t.Fatalf("DecodeModelJSON failed: %v", err)
	}
	if !parsed.OK {
		t.Fatal("expected ok=true")
	}
}
