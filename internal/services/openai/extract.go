package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"plenary/internal/services"
)

// Speaker is one person identified in the session transcript.
type Speaker struct {
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	Country      string `json:"country,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// SDG is one Sustainable Development Goal referenced in the session, with
// the transcript context it appeared in.
type SDG struct {
	Number  int    `json:"number"`
	Context string `json:"context,omitempty"`
}

// Entities is the structured output of entity extraction over a transcript.
type Entities struct {
	Speakers      []Speaker `json:"speakers"`
	Countries     []string  `json:"countries"`
	SDGs          []SDG     `json:"sdgs"`
	Organizations []string  `json:"organizations"`
	Topics        []string  `json:"topics"`
	Documents     []string  `json:"documents"`
	Locations     []string  `json:"locations"`
	Treaties      []string  `json:"treaties"`
	KeyDecisions  []string  `json:"key_decisions"`
}

const entitySystemPrompt = `You analyze transcripts of intergovernmental
meetings. Extract the entities mentioned and respond with JSON only, using
this shape:
{"speakers":[{"name":"","role":"","country":"","organization":""}],"countries":[],"sdgs":[{"number":0,"context":""}],"organizations":[],"topics":[],"documents":[],"locations":[],"treaties":[],"key_decisions":[]}
List every country mentioned or represented under "countries". Under "sdgs"
list Sustainable Development Goal numbers (1-17) with the context they were
raised in. List document symbols (such as resolution numbers) under
"documents", treaties, conventions, and legal instruments under "treaties",
and decisions or outcomes under "key_decisions". Omit entries you are not
confident about rather than guessing.`

const summarySystemPrompt = `You summarize transcripts of intergovernmental
meetings for an archive. Write a neutral, factual summary of 150-250 words
covering who spoke, the topics discussed, and any decisions or documents
referenced. Respond with the summary text only, no preamble.`

// ExtractEntities runs the extraction deployment over the transcript text.
func (c *Client) ExtractEntities(ctx context.Context, transcriptText string) (*Entities, error) {
	const op = "extract entities"
	transcriptText = strings.TrimSpace(transcriptText)
	if transcriptText == "" {
		return nil, services.Wrap(services.ErrValidation, "openai", op,
			"transcript text is required", nil)
	}

	content, err := c.chatCompletion(ctx, services.ErrExtraction, op,
		entitySystemPrompt, transcriptText, true)
	if err != nil {
		return nil, err
	}
	var entities Entities
	if err := DecodeModelJSON(content, &entities); err != nil {
		return nil, services.Wrap(services.ErrExtraction, "openai", op,
			"parse entity payload", err)
	}
	entities.normalize()
	return &entities, nil
}

// Summarize runs the extraction deployment in summary mode. The title, when
// known, anchors the summary.
func (c *Client) Summarize(ctx context.Context, title, transcriptText string) (string, error) {
	const op = "summarize"
	transcriptText = strings.TrimSpace(transcriptText)
	if transcriptText == "" {
		return "", services.Wrap(services.ErrValidation, "openai", op,
			"transcript text is required", nil)
	}

	prompt := transcriptText
	if title = strings.TrimSpace(title); title != "" {
		prompt = fmt.Sprintf("Session title: %s\n\n%s", title, transcriptText)
	}
	content, err := c.chatCompletion(ctx, services.ErrExtraction, op,
		summarySystemPrompt, prompt, false)
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(content)
	if summary == "" {
		return "", services.Wrap(services.ErrExtraction, "openai", op,
			"summary response carried no content", nil)
	}
	return summary, nil
}

type chatRequest struct {
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) chatCompletion(ctx context.Context, marker error, op, system, user string, jsonMode bool) (string, error) {
	payload := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
	}
	if jsonMode {
		payload.ResponseFormat = map[string]string{"type": "json_object"}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(marker, "openai", op, "encode request", err)
	}

	endpoint := c.deploymentURL(c.cfg.ExtractionModel, "chat/completions")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(marker, "openai", op, "new request", err)
	}
	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", c.classify(marker, op, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(marker, "openai", op, "decode response", err)
	}
	if parsed.Error != nil {
		return "", services.Wrap(marker, "openai", op,
			"api error: "+strings.TrimSpace(parsed.Error.Message), nil)
	}
	for _, choice := range parsed.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
		if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
			return "", services.Wrap(services.ErrValidation, "openai", op,
				"model refused: "+refusal, nil)
		}
	}
	return "", services.Wrap(marker, "openai", op, "empty completion", nil)
}

func (e *Entities) normalize() {
	seen := make(map[string]struct{}, len(e.Speakers))
	speakers := e.Speakers[:0]
	for _, speaker := range e.Speakers {
		speaker.Name = strings.TrimSpace(speaker.Name)
		if speaker.Name == "" {
			continue
		}
		key := strings.ToLower(speaker.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		speaker.Role = strings.TrimSpace(speaker.Role)
		speaker.Country = strings.TrimSpace(speaker.Country)
		speaker.Organization = strings.TrimSpace(speaker.Organization)
		speakers = append(speakers, speaker)
	}
	e.Speakers = speakers

	seenSDG := make(map[int]struct{}, len(e.SDGs))
	sdgs := e.SDGs[:0]
	for _, sdg := range e.SDGs {
		// Goals run 1 through 17; anything else is model noise.
		if sdg.Number < 1 || sdg.Number > 17 {
			continue
		}
		if _, dup := seenSDG[sdg.Number]; dup {
			continue
		}
		seenSDG[sdg.Number] = struct{}{}
		sdg.Context = strings.TrimSpace(sdg.Context)
		sdgs = append(sdgs, sdg)
	}
	e.SDGs = sdgs

	e.Countries = dedupeStrings(e.Countries)
	e.Organizations = dedupeStrings(e.Organizations)
	e.Topics = dedupeStrings(e.Topics)
	e.Documents = dedupeStrings(e.Documents)
	e.Locations = dedupeStrings(e.Locations)
	e.Treaties = dedupeStrings(e.Treaties)
	e.KeyDecisions = dedupeStrings(e.KeyDecisions)
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		key := strings.ToLower(value)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, value)
	}
	return out
}
