// Package critique produces short AI feedback on uploaded photographs.
// It is a non-essential side path: every failure degrades to a fixed
// placeholder string, never an error, so photo creation is never affected
// by the critique service being slow, misconfigured or down.
package critique

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fotochallenge-api/pkg/logger"
)

// Placeholder is returned whenever a critique cannot be produced
const Placeholder = "Analysis unavailable."

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	maxImageBytes  = 8 << 20
)

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Service calls the Gemini generateContent endpoint
type Service struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewService creates a critique service. An empty API key disables it;
// Critique then answers with the placeholder immediately.
func NewService(apiKey, model string, log *logger.Logger) *Service {
	return &Service{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// Critique analyzes the photo behind imageRef (a public URL or a base64
// data URI) and returns a brief two-sentence critique of composition and
// lighting. Never returns an error.
func (s *Service) Critique(ctx context.Context, imageRef, title string) string {
	if s.apiKey == "" {
		s.log.Debug("Critique skipped, no API key configured")
		return Placeholder
	}

	imageB64, err := s.resolveImage(ctx, imageRef)
	if err != nil {
		s.log.WithError(err).Warn("Failed to resolve image for critique")
		return Placeholder
	}

	prompt := fmt.Sprintf(
		`Analyze this photograph titled %q. Provide a very brief 2-sentence critique focusing on composition and lighting. Be professional and encouraging.`,
		title)

	reqBody := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: "image/jpeg", Data: imageB64}},
				{Text: prompt},
			},
		}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		s.log.WithError(err).Warn("Failed to marshal critique request")
		return Placeholder
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.baseURL, s.model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		s.log.WithError(err).Warn("Failed to build critique request")
		return Placeholder
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.WithError(err).Warn("Critique request failed")
		return Placeholder
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		s.log.WithFields(map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Warn("Critique request rejected")
		return Placeholder
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		s.log.WithError(err).Warn("Failed to decode critique response")
		return Placeholder
	}

	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text
			}
		}
	}
	return Placeholder
}

// resolveImage turns a URL or data URI into raw base64 image bytes
func (s *Service) resolveImage(ctx context.Context, imageRef string) (string, error) {
	if strings.HasPrefix(imageRef, "data:") {
		_, payload, found := strings.Cut(imageRef, ",")
		if !found || payload == "" {
			return "", fmt.Errorf("malformed data URI")
		}
		return payload, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageRef, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build image fetch: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read image body: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
