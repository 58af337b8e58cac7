package redact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

// entityCategories are the NER tag groups that get redacted. Other groups
// (e.g. MISC) pass through untouched.
var entityCategories = map[string]bool{
	"PER": true,
	"ORG": true,
	"LOC": true,
}

// RemoteScrubber calls a token-classification inference endpoint and replaces
// identified spans with placeholder tokens.
//
// The endpoint follows the Hugging Face inference convention: POST a JSON
// body {"inputs": text} and receive a list of entities with character
// offsets. Offsets are rune positions, so replacement operates on runes.
type RemoteScrubber struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// nerEntity is one detected span in the inference response.
type nerEntity struct {
	EntityGroup string  `json:"entity_group"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Score       float64 `json:"score"`
}

// NewRemoteScrubber creates a scrubber backed by a NER inference endpoint.
func NewRemoteScrubber(baseURL string, timeout time.Duration, logger *zap.Logger) *RemoteScrubber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &RemoteScrubber{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Scrub implements Scrubber.
func (s *RemoteScrubber) Scrub(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling redaction endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("redaction endpoint returned %d: %s", resp.StatusCode, payload)
	}

	var entities []nerEntity
	if err := json.NewDecoder(resp.Body).Decode(&entities); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	scrubbed := replaceEntities(text, entities)

	s.logger.Debug("scrubbed text via remote model",
		zap.Int("entities", len(entities)),
	)
	return scrubbed, nil
}

// replaceEntities substitutes placeholder tokens for detected spans,
// applying replacements from the end of the text so offsets stay valid.
func replaceEntities(text string, entities []nerEntity) string {
	runes := []rune(text)

	sort.Slice(entities, func(i, j int) bool { return entities[i].Start > entities[j].Start })

	for _, e := range entities {
		if !entityCategories[e.EntityGroup] {
			continue
		}
		if e.Start < 0 || e.End > len(runes) || e.Start >= e.End {
			continue
		}
		placeholder := []rune("<" + e.EntityGroup + ">")
		runes = append(runes[:e.Start], append(placeholder, runes[e.End:]...)...)
	}
	return string(runes)
}

var _ Scrubber = (*RemoteScrubber)(nil)
