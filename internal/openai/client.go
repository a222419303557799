// Package openai talks to the OpenAI HTTP API: audio transcription and chat
// completion. Requests are plain net/http; no SDK.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"meetgpt/internal/config"
)

// maxAudioBytes is the API-side upload limit for audio files.
const maxAudioBytes = 25 * 1024 * 1024

// Client calls the transcription and chat completion endpoints.
type Client struct {
	cfg  config.LLMConfig
	http *http.Client
}

// New builds a client from the LLM config. A nil httpClient gets a default
// with a generous timeout; transcription of long recordings is slow.
func New(cfg config.LLMConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Transcribe sends the audio bytes to the transcription endpoint and returns
// the plain-text transcript.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY not set")
	}
	if len(audio) > maxAudioBytes {
		return "", fmt.Errorf("audio exceeds %dMB limit", maxAudioBytes/(1024*1024))
	}

	bodyReader, bodyWriter := io.Pipe()
	writer := multipart.NewWriter(bodyWriter)
	go func() {
		defer bodyWriter.Close()
		defer writer.Close()
		fw, err := writer.CreateFormFile("file", filename)
		if err != nil {
			_ = bodyWriter.CloseWithError(err)
			return
		}
		if _, err := fw.Write(audio); err != nil {
			_ = bodyWriter.CloseWithError(err)
			return
		}
		writer.WriteField("model", c.cfg.TranscribeModel)
		if c.cfg.Language != "" {
			writer.WriteField("language", c.cfg.Language)
		}
		writer.WriteField("response_format", "text")
	}()

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bodyReader)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcription status %d: %s", resp.StatusCode, string(b))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	transcript := strings.TrimSpace(string(b))
	if transcript == "" {
		return "", errors.New("empty transcript")
	}
	return transcript, nil
}

// Summarize asks the chat model for a meeting summary. content is the user
// turn; the configured summary prompt is the system turn. Temperature is zero
// so reruns over the same transcript stay close to deterministic.
func (c *Client) Summarize(ctx context.Context, content string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY not set")
	}
	payload := map[string]any{
		"model":       c.cfg.ChatModel,
		"temperature": 0,
		"messages": []map[string]string{
			{"role": "system", "content": c.cfg.SummaryPrompt},
			{"role": "user", "content": content},
		},
	}
	buf, _ := json.Marshal(payload)

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat status %d: %s", resp.StatusCode, string(b))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
