package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"plenary/internal/services"
)

// Segment is one timed slice of the transcript.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the full output of the transcription model for one audio file.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// WordCount counts whitespace-separated tokens across the transcript text.
func (t *Transcript) WordCount() int {
	return len(strings.Fields(t.Text))
}

// Transcribe uploads the audio file to the transcription deployment and
// returns the timed transcript.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (*Transcript, error) {
	const op = "transcribe"

	file, err := os.Open(audioPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "openai", op,
			"audio file is not readable", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "openai", op,
			"build multipart body", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "openai", op,
			"copy audio into request", err)
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "openai", op,
			"build multipart body", err)
	}
	if err := writer.Close(); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "openai", op,
			"finalize multipart body", err)
	}

	endpoint := c.deploymentURL(c.cfg.TranscribeModel, "audio/transcriptions")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "openai", op, "new request", err)
	}
	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	payload, err := c.do(req)
	if err != nil {
		return nil, c.classify(services.ErrTranscription, op, err)
	}

	var parsed struct {
		Text     string  `json:"text"`
		Language string  `json:"language"`
		Duration float64 `json:"duration"`
		Segments []struct {
			ID    int     `json:"id"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "openai", op,
			"decode transcription response", err)
	}
	if strings.TrimSpace(parsed.Text) == "" && len(parsed.Segments) == 0 {
		return nil, services.Wrap(services.ErrTranscription, "openai", op,
			"transcription response carried no content", nil)
	}

	transcript := &Transcript{
		Text:     strings.TrimSpace(parsed.Text),
		Language: strings.TrimSpace(parsed.Language),
		Duration: parsed.Duration,
		Segments: make([]Segment, 0, len(parsed.Segments)),
	}
	for i, segment := range parsed.Segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		transcript.Segments = append(transcript.Segments, Segment{
			Index: i,
			Start: segment.Start,
			End:   segment.End,
			Text:  text,
		})
	}
	if transcript.Text == "" {
		parts := make([]string, len(transcript.Segments))
		for i, segment := range transcript.Segments {
			parts[i] = segment.Text
		}
		transcript.Text = strings.Join(parts, " ")
	}
	return transcript, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
