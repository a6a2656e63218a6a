// Package tts provides speech synthesis against the Gemini text-to-speech
// models, with a Flash to Pro fallback chain and the per-world voice table.
package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/hearo-tools/internal/core"
	"google.golang.org/genai"
)

// Response modality requested from the model.
const modalityAudio = "AUDIO"

// Static errors.
var (
	ErrTextEmpty      = errors.New("text cannot be empty")
	ErrAPIKeyEmpty    = errors.New("api key cannot be empty")
	ErrVoiceEmpty     = errors.New("voice cannot be empty")
	ErrEmptyAudio     = errors.New("response contains no audio data")
	ErrMalformedAudio = errors.New("audio data is not a whole number of 16-bit samples")
)

// Delivery prefixes prepended to the text for each style tag.
var stylePrefixes = map[string]string{
	"neutral":    "",
	"expressive": "[Expressive, emotive tone] ",
	"dramatic":   "[Dramatic, theatrical delivery] ",
	"gentle":     "[Soft, gentle voice] ",
	"energetic":  "[Energetic, upbeat tone] ",
}

// StyledText returns the text with the delivery prefix of the style. Unknown
// styles add nothing.
func StyledText(style, text string) string {
	return stylePrefixes[style] + text
}

// ClientConfig holds the connection settings of a GeminiClient.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
}

// GeminiClient performs single text-to-speech requests against one Gemini
// model at a time. It implements core.TierClient.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a client for the Gemini developer API.
func NewGeminiClient(ctx context.Context, cfg ClientConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyEmpty
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: cfg.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

// Generate asks the model to speak the request text and returns the raw
// mono 16-bit PCM samples. Non-success answers are reported as *StatusError.
func (c *GeminiClient) Generate(ctx context.Context, model string, req core.SpeechRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	if req.Voice == "" {
		return nil, ErrVoiceEmpty
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{modalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: req.Voice,
				},
			},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(StyledText(req.Style, req.Text)), config)
	if err != nil {
		return nil, translateError(err)
	}

	return extractAudio(resp)
}

// extractAudio returns the first inline audio part of the response.
func extractAudio(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrEmptyAudio
	}

	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil, ErrEmptyAudio
	}

	for _, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}

		if len(part.InlineData.Data)%2 != 0 {
			return nil, fmt.Errorf("%w: %d bytes", ErrMalformedAudio, len(part.InlineData.Data))
		}

		return part.InlineData.Data, nil
	}

	return nil, ErrEmptyAudio
}

// translateError turns SDK API errors into *StatusError so that the fallback
// chain can classify them without knowing the SDK.
func translateError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &StatusError{Code: apiErrPtr.Code, Status: apiErrPtr.Status, Message: apiErrPtr.Message}
	}

	return fmt.Errorf("gemini request failed: %w", err)
}

// NewHTTPClient returns the HTTP client used for speech requests. The
// timeout is a backstop; each request also carries its own deadline.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
