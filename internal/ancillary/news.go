package ancillary

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nftlender/backend/internal/observability"
)

type NewsConfig struct {
	BaseURL string
	APIKey  string
	Query   string
	Timeout time.Duration
}

type Article struct {
	Source      string `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url"`
	PublishedAt string `json:"published_at"`
}

// News reads NewsAPI. It never fails: any upstream problem yields an empty
// list and a log line.
type News struct {
	baseURL string
	apiKey  string
	query   string
	client  *http.Client
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewNews(cfg NewsConfig, logger *slog.Logger, metrics *observability.Metrics) *News {
	query := cfg.Query
	if query == "" {
		query = "NFT"
	}
	return &News{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		query:   query,
		client:  newHTTPClient(cfg.Timeout),
		logger:  logger,
		metrics: metrics,
	}
}

type newsResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (n *News) FetchLatestNews(ctx context.Context) []Article {
	q := url.Values{}
	q.Set("q", n.query)
	q.Set("apiKey", n.apiKey)
	req, err := http.NewRequest(http.MethodGet, n.baseURL+"/v2/everything?"+q.Encode(), nil)
	if err != nil {
		n.logger.Error("build news request", "err", err)
		return []Article{}
	}

	var out newsResponse
	if err := doJSON(ctx, n.client, "newsapi", req, &out); err != nil {
		n.logger.Error("news fetch failed", "err", err)
		n.metrics.ObserveUpstreamFailure("newsapi")
		return []Article{}
	}
	if len(out.Articles) == 0 {
		n.logger.Warn("no articles found in news response")
		return []Article{}
	}

	articles := make([]Article, 0, len(out.Articles))
	for _, a := range out.Articles {
		articles = append(articles, Article{
			Source:      a.Source.Name,
			Author:      a.Author,
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			PublishedAt: a.PublishedAt,
		})
	}
	return articles
}
