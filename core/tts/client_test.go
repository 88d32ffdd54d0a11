package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleg-smirsky/LaudReader/config"
	"github.com/oleg-smirsky/LaudReader/core/auth"
)

func testClient(endpoint string) *Client {
	return NewClient(auth.StaticProvider{Token: "test-token"}, &config.Config{
		TTSEndpoint: endpoint,
		TTSVoice:    "en-US-Wavenet-D",
		TTSLanguage: "en-US",
	})
}

func TestSynthesizeDecodesAudioContent(t *testing.T) {
	var gotAuth string
	var gotReq synthesizeRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(synthesizeResponse{
			AudioContent: base64.StdEncoding.EncodeToString([]byte("mp3-bytes")),
		})
	}))
	defer srv.Close()

	audio, err := testClient(srv.URL).Synthesize(context.Background(), "Hello world.")
	require.NoError(t, err)

	assert.Equal(t, []byte("mp3-bytes"), audio)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "Hello world.", gotReq.Input.Text)
	assert.Equal(t, "en-US-Wavenet-D", gotReq.Voice.Name)
	assert.Equal(t, "en-US", gotReq.Voice.LanguageCode)
	assert.Equal(t, "MP3", gotReq.AudioConfig.AudioEncoding)
	assert.Equal(t, 1.0, gotReq.AudioConfig.SpeakingRate)
}

func TestSynthesizeReturnsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("quota exceeded"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Synthesize(context.Background(), "Hello")
	require.Error(t, err)

	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Contains(t, provErr.Body, "quota exceeded")
}

func TestSynthesizeEmptyAudioContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(synthesizeResponse{})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Synthesize(context.Background(), "Hello")
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestSynthesizeWithoutTokenFailsFast(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	client := NewClient(auth.StaticProvider{}, &config.Config{TTSEndpoint: srv.URL})
	_, err := client.Synthesize(context.Background(), "Hello")

	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, requests, "no request should be sent without a token")
}
