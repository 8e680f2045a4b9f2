// internal/assistant/client.go
package assistant

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"meal-journal/internal/models"
)

// placeholder shipped in example env files
const placeholderKey = "df-your-api-key-here"

var ErrNotConfigured = errors.New("assistant API key is not configured")

type Config struct {
	ProxyURL    string        `json:"proxy_url" yaml:"proxy_url"`
	Gateway     string        `json:"gateway" yaml:"gateway"`
	APIKey      string        `json:"api_key" yaml:"api_key"`
	Model       string        `json:"model" yaml:"model"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

// Client calls the completion gateway through the MCP proxy.
type Client struct {
	httpClient *http.Client
	config     Config
}

func NewClient(cfg Config) *Client {
	if cfg.Gateway == "" {
		cfg.Gateway = "openrouter-gateway"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
	}
}

func (c *Client) Configured() bool {
	return c.config.APIKey != "" && c.config.APIKey != placeholderKey
}

type imagePart struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type gatewayMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
	Images  []imagePart `json:"images,omitempty"`
}

// TextToText continues the conversation described by history.
func (c *Client) TextToText(ctx context.Context, history []models.HistoryMessage) (string, error) {
	messages := make([]gatewayMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, gatewayMessage{Role: m.Role, Content: m.Content})
	}
	return c.complete(ctx, messages)
}

// ImageToText describes a meal photo following prompt.
func (c *Client) ImageToText(ctx context.Context, prompt string, image models.Image) (string, error) {
	if len(image.Data) == 0 {
		return "", fmt.Errorf("image is empty")
	}
	mimeType := image.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(image.Data)
	}

	messages := []gatewayMessage{
		{Role: models.SystemRole, Content: prompt},
		{
			Role:    models.UserRole,
			Content: "Describe the food in this image.",
			Images:  []imagePart{{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(image.Data)}},
		},
	}
	return c.complete(ctx, messages)
}

func (c *Client) complete(ctx context.Context, messages []gatewayMessage) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	completionRequest := map[string]interface{}{
		"model":       c.config.Model,
		"messages":    messages,
		"max_tokens":  c.config.MaxTokens,
		"temperature": c.config.Temperature,
	}

	gatewayResponse, err := c.callGateway(ctx, "create_completion", completionRequest)
	if err != nil {
		return "", fmt.Errorf("failed to get AI completion: %w", err)
	}

	reply := parseReply(gatewayResponse)
	if reply == "" {
		return "", fmt.Errorf("empty AI completion")
	}
	return reply, nil
}

func (c *Client) callGateway(ctx context.Context, toolName string, args interface{}) (string, error) {
	url := fmt.Sprintf("%s/%s", strings.TrimRight(c.config.ProxyURL, "/"), c.config.Gateway)

	requestData := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      toolName,
			"arguments": args,
		},
	}

	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("request failed with status %d and couldn't read body: %v", resp.StatusCode, err)
		}
		slog.Warn("completion gateway rejected request", slog.Int("status", resp.StatusCode))
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var rpcResponse struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResponse); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResponse.Error != nil {
		return "", fmt.Errorf("gateway error %d: %s", rpcResponse.Error.Code, rpcResponse.Error.Message)
	}
	if len(rpcResponse.Result.Content) == 0 {
		return "", fmt.Errorf("unexpected response format")
	}

	return rpcResponse.Result.Content[0].Text, nil
}

// parseReply unwraps {"content": "..."} when the gateway returns the raw
// completion object, and otherwise takes the text as the reply.
func parseReply(output string) string {
	var completion struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal([]byte(output), &completion); err == nil && completion.Content != nil {
		return strings.TrimSpace(*completion.Content)
	}
	return strings.TrimSpace(output)
}
