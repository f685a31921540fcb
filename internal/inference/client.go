// Package inference talks to the difficulty/confusion analysis service.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/readaid/internal/model"
)

// DefaultTimeout bounds a single analysis round trip.
const DefaultTimeout = 10 * time.Second

var (
	// ErrMalformedResponse reports a body that is not a valid analysis result.
	ErrMalformedResponse = errors.New("malformed analysis response")
	// ErrUnexpectedStatus reports a non-2xx reply.
	ErrUnexpectedStatus = errors.New("unexpected analysis status")
)

// ClientConfig configures the analysis client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Client posts analysis requests to the inference service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client for the service at cfg.BaseURL.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "inference").Logger(),
	}
}

// Analyze sends one request and validates the verdict.
func (c *Client) Analyze(ctx context.Context, req model.AnalysisRequest) (model.AnalysisResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("analysis request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort close of response body.
			_ = cerr
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Int("bodyLen", len(respBody)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.AnalysisResult{}, fmt.Errorf("%w: %d - %s", ErrUnexpectedStatus, resp.StatusCode, truncate(string(respBody), 200))
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := Validate(result); err != nil {
		return model.AnalysisResult{}, err
	}
	return result, nil
}

// Validate checks that scores are finite and within [0, 1].
func Validate(res model.AnalysisResult) error {
	if !unit(res.DifficultyScore) {
		return fmt.Errorf("%w: difficulty_score %v out of range", ErrMalformedResponse, res.DifficultyScore)
	}
	if !unit(res.ConfusionProbability) {
		return fmt.Errorf("%w: confusion_probability %v out of range", ErrMalformedResponse, res.ConfusionProbability)
	}
	return nil
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
