package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const maxErrorBody = 1 << 20

var ErrEmptyResponse = errors.New("image response contained no url")

// ImageRequest is the body of POST /v1/images/generations.
type ImageRequest struct {
	Model           string   `json:"model"`
	Prompt          string   `json:"prompt"`
	Width           int      `json:"width"`
	Height          int      `json:"height"`
	Temperature     float64  `json:"temperature"`
	ReferenceImages []string `json:"reference_images,omitempty"`
}

type ImageResult struct {
	URL string
}

// ImageGenerator produces one image for a prompt using the caller's credential.
type ImageGenerator interface {
	Generate(ctx context.Context, apiKey string, req ImageRequest) (*ImageResult, error)
}

// APIError is a non-2xx response from the image provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("image api status %d: %s", e.StatusCode, e.Message)
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// ImageClient talks to a Together-compatible images endpoint.
type ImageClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewImageClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *ImageClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.Named("ImageClient"),
	}
}

func (c *ImageClient) Generate(ctx context.Context, apiKey string, req ImageRequest) (*ImageResult, error) {
	if len(req.ReferenceImages) == 0 {
		req.ReferenceImages = nil
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal image request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	c.logger.Debug("requesting image",
		zap.String("model", req.Model),
		zap.Int("width", req.Width),
		zap.Int("height", req.Height),
		zap.Int("references", len(req.ReferenceImages)),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var out imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode image response: %w", err)
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return nil, ErrEmptyResponse
	}
	return &ImageResult{URL: out.Data[0].URL}, nil
}

// decodeAPIError reads the OpenAI-style {"error":{"message":...}} envelope, falling back to the raw body.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope openai.ErrorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		return apiErr
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" || strings.HasPrefix(msg, "<") {
		msg = http.StatusText(resp.StatusCode)
	}
	apiErr.Message = msg
	return apiErr
}
