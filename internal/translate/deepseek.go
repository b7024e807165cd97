package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/d60-Lab/content-factory/config"
)

// DeepSeekTranslator 走 chat-completions 接口的翻译实现
type DeepSeekTranslator struct {
	apiKey  string
	baseURL string
	model   string
	hc      *http.Client
}

func NewDeepSeekTranslator(cfg config.TranslateConfig) *DeepSeekTranslator {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "deepseek-chat"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DeepSeekTranslator{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		hc:      &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (d *DeepSeekTranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	if from == to || strings.TrimSpace(text) == "" {
		return text, nil
	}

	prompt := fmt.Sprintf(
		"Translate the following social media caption from %s to %s. "+
			"Keep hashtags, mentions and emoji unchanged. Reply with the translation only.\n\n%s",
		from, to, text)

	body, err := json.Marshal(chatRequest{
		Model: d.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a professional translator."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslateUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrTranslateUnavailable, resp.StatusCode)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslateUnavailable, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrTranslateUnavailable)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
