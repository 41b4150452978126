package ancillary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nftlender/backend/internal/apperr"
	"github.com/nftlender/backend/internal/observability"
)

type MediaConfig struct {
	BaseURL string
	APIKey  string
	Size    string
	Timeout time.Duration
}

// Media generates a single image for a keyword through the OpenAI images API.
type Media struct {
	baseURL string
	apiKey  string
	size    string
	client  *http.Client
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewMedia(cfg MediaConfig, logger *slog.Logger, metrics *observability.Metrics) *Media {
	size := cfg.Size
	if size == "" {
		size = "256x256"
	}
	return &Media{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		size:    size,
		client:  newHTTPClient(cfg.Timeout),
		logger:  logger,
		metrics: metrics,
	}
}

type imageRequest struct {
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (m *Media) FetchMedia(ctx context.Context, keyword string) (string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", apperr.New(apperr.KindPreconditionFailed, "A keyword is required.")
	}

	url, err := m.generate(ctx, keyword)
	if err != nil {
		m.logger.Error("image generation failed", "err", err)
		m.metrics.ObserveUpstreamFailure("openai")
		return "", apperr.Wrap(apperr.KindUpstreamUnavailable, "Failed to generate image.", err)
	}
	return url, nil
}

func (m *Media) generate(ctx context.Context, keyword string) (string, error) {
	payload, err := json.Marshal(imageRequest{Prompt: keyword, N: 1, Size: m.size})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, m.baseURL+"/v1/images/generations", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	var out imageResponse
	if err := doJSON(ctx, m.client, "openai", req, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return "", errors.New("openai returned no image")
	}
	return out.Data[0].URL, nil
}
