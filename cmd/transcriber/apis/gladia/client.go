package gladia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"
)

const (
	uploadPath      = "/v2/upload"
	submitPath      = "/v2/pre-recorded"
	requestLimit    = 5 * time.Minute
	statusDone      = "done"
	subtitlesFormat = "srt"
)

type Config struct {
	APIKey  string
	BaseURL string
	// PollBudget is the hard wall-clock cap on the polling phase.
	PollBudget time.Duration
}

func (c Config) IsValid() error {
	if c.APIKey == "" {
		return fmt.Errorf("APIKey cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("BaseURL cannot be empty")
	}
	return nil
}

func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.gladia.io"
	}
	if c.PollBudget == 0 {
		c.PollBudget = 300 * time.Second
	}
}

// Client drives the three-phase protocol of the remote transcription
// service: upload audio, submit the job, poll for completion.
//
// Every failure mode, including poll budget exhaustion, resolves to the
// canonical empty result rather than an error. Callers rely on this as
// their graceful-degradation contract.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: requestLimit,
		},
	}
}

// Transcribe uploads the audio at path and returns the normalized remote
// transcription, translated to targetLang when it differs from sourceLang.
func (c *Client) Transcribe(ctx context.Context, path, sourceLang, targetLang string) transcribe.Result {
	audioURL, ok := c.upload(ctx, path)
	if !ok {
		return transcribe.EmptyResult()
	}

	wantTranslation := targetLang != "" && targetLang != sourceLang

	resultURL, ok := c.submit(ctx, audioURL, sourceLang, targetLang, wantTranslation)
	if !ok {
		return transcribe.EmptyResult()
	}

	return c.poll(ctx, resultURL, wantTranslation)
}

func (c *Client) upload(ctx context.Context, path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("failed to open audio file for upload", slog.String("err", err.Error()))
		return "", false
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", filepath.Base(path))
	if err != nil {
		slog.Error("failed to create multipart field", slog.String("err", err.Error()))
		return "", false
	}
	if _, err := io.Copy(fw, f); err != nil {
		slog.Error("failed to read audio file", slog.String("err", err.Error()))
		return "", false
	}
	if err := mw.Close(); err != nil {
		slog.Error("failed to finalize multipart body", slog.String("err", err.Error()))
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+uploadPath, &body)
	if err != nil {
		slog.Error("failed to create upload request", slog.String("err", err.Error()))
		return "", false
	}
	req.Header.Set("x-gladia-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("upload request failed", slog.String("err", err.Error()))
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		slog.Error("upload returned non-success status",
			slog.Int("code", resp.StatusCode), slog.String("body", string(data)))
		return "", false
	}

	var ur struct {
		AudioURL string `json:"audio_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		slog.Error("failed to decode upload response", slog.String("err", err.Error()))
		return "", false
	}
	if ur.AudioURL == "" {
		slog.Error("upload returned empty audio_url")
		return "", false
	}

	return ur.AudioURL, true
}

func (c *Client) submit(ctx context.Context, audioURL, sourceLang, targetLang string, wantTranslation bool) (string, bool) {
	payload := map[string]any{
		"audio_url":       audioURL,
		"detect_language": true,
		"language":        sourceLang,
		"translation":     wantTranslation,
		"diarization":     true,
		"subtitles":       true,
		"subtitles_config": map[string]any{
			"formats": []string{subtitlesFormat},
		},
	}
	if wantTranslation {
		payload["translation_config"] = map[string]any{
			"target_languages":          []string{targetLang},
			"model":                     "base",
			"match_original_utterances": true,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal submit payload", slog.String("err", err.Error()))
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+submitPath, bytes.NewReader(data))
	if err != nil {
		slog.Error("failed to create submit request", slog.String("err", err.Error()))
		return "", false
	}
	req.Header.Set("x-gladia-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("submit request failed", slog.String("err", err.Error()))
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("submit returned non-success status",
			slog.Int("code", resp.StatusCode), slog.String("body", string(body)))
		return "", false
	}

	var sr struct {
		ResultURL string `json:"result_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		slog.Error("failed to decode submit response", slog.String("err", err.Error()))
		return "", false
	}
	if sr.ResultURL == "" {
		slog.Error("submit returned empty result_url")
		return "", false
	}

	return sr.ResultURL, true
}

// poll fetches the result URL until the job reaches its terminal state or
// the wait budget runs out. The wait between polls follows a Fibonacci
// sequence of seconds so the schedule is monotonically non-decreasing.
func (c *Client) poll(ctx context.Context, resultURL string, wantTranslation bool) transcribe.Result {
	fib := fibonacci()
	var waited time.Duration

	for waited < c.cfg.PollBudget {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
		if err != nil {
			slog.Error("failed to create poll request", slog.String("err", err.Error()))
			return transcribe.EmptyResult()
		}
		req.Header.Set("x-gladia-key", c.cfg.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			slog.Error("poll request failed", slog.String("err", err.Error()))
			return transcribe.EmptyResult()
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			slog.Error("poll returned non-success status",
				slog.Int("code", resp.StatusCode), slog.String("body", string(body)))
			return transcribe.EmptyResult()
		}

		var rr resultResponse
		err = json.NewDecoder(resp.Body).Decode(&rr)
		resp.Body.Close()
		if err != nil {
			slog.Error("failed to decode poll response", slog.String("err", err.Error()))
			return transcribe.EmptyResult()
		}

		if rr.Status == statusDone {
			return normalize(rr, wantTranslation)
		}

		wait := time.Duration(fib()) * time.Second
		waited += wait
		slog.Info("remote result not ready",
			slog.String("status", rr.Status),
			slog.Duration("wait", wait),
			slog.Duration("waited", waited))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			slog.Error("poll canceled", slog.String("err", ctx.Err().Error()))
			return transcribe.EmptyResult()
		}
	}

	slog.Error("poll budget exhausted", slog.Duration("budget", c.cfg.PollBudget))
	return transcribe.EmptyResult()
}

func fibonacci() func() int {
	a, b := 1, 1
	return func() int {
		n := a
		a, b = b, a+b
		return n
	}
}
