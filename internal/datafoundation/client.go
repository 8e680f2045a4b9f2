// internal/datafoundation/client.go
package datafoundation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"meal-journal/internal/models"
	"meal-journal/internal/storage"
)

const defaultToken = "1"

type ClientConfig struct {
	// BaseURL is the dataset entity endpoint; every verb goes to this one URL.
	BaseURL  string        `json:"base_url" yaml:"base_url"`
	APIToken string        `json:"api_token" yaml:"api_token"`
	Token    string        `json:"token" yaml:"token"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// StatusError is a non-2xx answer from the dataset API.
type StatusError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed: HTTP error! status: %d", e.Method, e.StatusCode)
}

// Unwrap classifies the status so callers can use errors.Is with the
// storage sentinels.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return storage.ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return storage.ErrConflict
	case e.Method == http.MethodPost && e.StatusCode >= 400 && e.StatusCode < 500 &&
		e.StatusCode != http.StatusUnauthorized && e.StatusCode != http.StatusForbidden:
		// the dataset reports "already exists" on create with a store-defined 4xx
		return storage.ErrConflict
	default:
		return storage.ErrTransient
	}
}

// Client talks to the dataset API, one resource per participant.
type Client struct {
	httpClient *http.Client
	config     ClientConfig
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Token == "" {
		cfg.Token = defaultToken
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
	}
}

func (c *Client) Create(ctx context.Context, participantID string, doc models.Document) error {
	_, err := c.do(ctx, http.MethodPost, participantID, doc)
	return err
}

func (c *Client) Read(ctx context.Context, participantID string) (models.Document, error) {
	body, err := c.do(ctx, http.MethodGet, participantID, nil)
	if err != nil {
		return nil, err
	}

	doc := models.Document{}
	if len(bytes.TrimSpace(body)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

func (c *Client) Replace(ctx context.Context, participantID string, doc models.Document) error {
	_, err := c.do(ctx, http.MethodPut, participantID, doc)
	return err
}

func (c *Client) Delete(ctx context.Context, participantID string) error {
	_, err := c.do(ctx, http.MethodDelete, participantID, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, participantID string, doc models.Document) ([]byte, error) {
	var body io.Reader
	if doc != nil {
		jsonData, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal document: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_token", c.config.APIToken)
	req.Header.Set("resource_id", participantID)
	req.Header.Set("token", c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("dataset request failed", slog.String("method", method), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s request failed: %w", method, errors.Join(storage.ErrTransient, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", errors.Join(storage.ErrTransient, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Method: method, StatusCode: resp.StatusCode, Body: string(respBody)}
		if resp.StatusCode != http.StatusNotFound {
			slog.Warn("dataset request rejected",
				slog.String("method", method),
				slog.Int("status", resp.StatusCode),
				slog.String("participantID", participantID))
		}
		return nil, statusErr
	}

	slog.Debug("dataset request successful", slog.String("method", method), slog.String("participantID", participantID))
	return respBody, nil
}
