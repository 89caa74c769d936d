package client

import (
	"context"
	"fmt"
	"net/http"

	"thumbforge-client/internal/config"
	"thumbforge-client/internal/model"
)

// Generator produces an artifact URI for a request.
type Generator interface {
	Generate(ctx context.Context, req model.GenerationRequest) (string, error)
}

// NewGenerator picks the backend named by cfg.Service.Provider.
func NewGenerator(cfg *config.Config, httpClient *http.Client) (Generator, error) {
	switch cfg.Service.Provider {
	case config.ProviderThumbforge:
		return NewThumbnailClient(cfg.Service.BaseURL, httpClient), nil
	case config.ProviderOpenAI:
		return NewOpenAIGenerator(cfg.OpenAI, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Service.Provider)
	}
}
