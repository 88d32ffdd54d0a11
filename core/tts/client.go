package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oleg-smirsky/LaudReader/config"
	"github.com/oleg-smirsky/LaudReader/core/auth"
)

// ErrNotAuthenticated means no access token could be obtained. The
// caller should not retry; the whole generation aborts.
var ErrNotAuthenticated = errors.New("tts: not authenticated")

// ErrEmptyResponse means the provider accepted the request but returned
// no audio content.
var ErrEmptyResponse = errors.New("tts: provider returned empty audio content")

// ProviderError is a non-2xx answer from the speech API.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts: provider returned %d: %s", e.StatusCode, e.Body)
}

// Synthesizer converts one chunk of text into encoded audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Client calls the Google Cloud text:synthesize REST endpoint. One
// request per chunk; a fresh bearer token is requested for each call so
// long generations survive token rotation.
type Client struct {
	httpClient *http.Client
	creds      auth.CredentialProvider
	endpoint   string
	voice      string
	language   string
}

// NewClient creates a synthesis client from the service configuration.
func NewClient(creds auth.CredentialProvider, cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		creds:      creds,
		endpoint:   cfg.TTSEndpoint,
		voice:      cfg.TTSVoice,
		language:   cfg.TTSLanguage,
	}
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate"`
		Pitch         float64 `json:"pitch"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize converts text to MP3 bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	token, err := c.creds.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	var reqBody synthesizeRequest
	reqBody.Input.Text = text
	reqBody.Voice.LanguageCode = c.language
	reqBody.Voice.Name = c.voice
	reqBody.AudioConfig.AudioEncoding = "MP3"
	reqBody.AudioConfig.SpeakingRate = 1.0
	reqBody.AudioConfig.Pitch = 0.0

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesis response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var synthResp synthesizeResponse
	if err := json.Unmarshal(body, &synthResp); err != nil {
		return nil, fmt.Errorf("failed to parse synthesis response: %w", err)
	}
	if synthResp.AudioContent == "" {
		return nil, ErrEmptyResponse
	}

	audio, err := base64.StdEncoding.DecodeString(synthResp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio content: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyResponse
	}
	return audio, nil
}
