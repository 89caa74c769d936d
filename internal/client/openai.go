package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"thumbforge-client/internal/config"
	"thumbforge-client/internal/model"

	"github.com/gabriel-vasile/mimetype"
	openai "github.com/sashabaranov/go-openai"
)

var ErrImageRequired = errors.New("the openai provider needs a source image")

// OpenAIGenerator renders thumbnails with the OpenAI image edit endpoint
// instead of the thumbnail service.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	size   string
}

func NewOpenAIGenerator(cfg config.OpenAIConfig, httpClient *http.Client) *OpenAIGenerator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		size:   cfg.Size,
	}
}

// BuildPrompt turns the form into an edit instruction.
func BuildPrompt(form model.FormState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Turn this image into an eye-catching %s thumbnail", form.DisplayCategory())
	if p, ok := model.LookupPlatform(form.Platform); ok {
		fmt.Fprintf(&b, " for %s (%s aspect ratio)", p.Label, p.AspectRatio)
	} else if form.Platform != "" {
		fmt.Fprintf(&b, " for %s", form.Platform)
	}
	fmt.Fprintf(&b, ". Focus on: %s.", strings.TrimSpace(form.Focus))
	if style := strings.TrimSpace(form.Style); style != "" {
		fmt.Fprintf(&b, " Style: %s.", style)
	}
	if addons := strings.TrimSpace(form.Addons); addons != "" {
		fmt.Fprintf(&b, " Additional instructions: %s", addons)
	}
	return b.String()
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req model.GenerationRequest) (string, error) {
	if req.Image == nil {
		return "", ErrImageRequired
	}

	// the SDK streams the image from a file
	ext := ".png"
	if mt := mimetype.Lookup(req.Image.ContentType); mt != nil {
		ext = mt.Extension()
	}
	f, err := os.CreateTemp("", "thumbforge-edit-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to stage image: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if _, err := f.Write(req.Image.Data); err != nil {
		return "", fmt.Errorf("failed to stage image: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return "", fmt.Errorf("failed to stage image: %w", err)
	}

	editReq := openai.ImageEditRequest{
		Image:  f,
		Prompt: BuildPrompt(req.Form),
		Model:  g.model,
		N:      1,
		Size:   g.size,
	}
	if strings.HasPrefix(g.model, "dall-e") {
		editReq.ResponseFormat = openai.CreateImageResponseFormatURL
	}

	resp, err := g.client.CreateEditImage(ctx, editReq)
	if err != nil {
		return "", fmt.Errorf("openai image edit failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", ErrMissingArtifact
	}

	item := resp.Data[0]
	switch {
	case item.URL != "":
		return item.URL, nil
	case item.B64JSON != "":
		return "data:image/png;base64," + item.B64JSON, nil
	}
	return "", ErrMissingArtifact
}
