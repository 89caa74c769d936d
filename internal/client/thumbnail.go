package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"thumbforge-client/internal/model"
	"thumbforge-client/internal/utils"
)

// ThumbnailClient calls the remote generation service.
type ThumbnailClient struct {
	baseURL string
	http    *http.Client
}

func NewThumbnailClient(baseURL string, httpClient *http.Client) *ThumbnailClient {
	return &ThumbnailClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type generateResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Generate posts the form as multipart and returns the artifact URL.
func (c *ThumbnailClient) Generate(ctx context.Context, req model.GenerationRequest) (string, error) {
	body, contentType, err := encodeGenerateForm(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generateThumbnail", body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if req.ID != "" {
		httpReq.Header.Set("X-Request-Id", req.ID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newStatusError(resp.StatusCode, utils.ReadLimited(resp.Body, 64<<10))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Data.URL == "" {
		return "", ErrMissingArtifact
	}
	return out.Data.URL, nil
}

func encodeGenerateForm(req model.GenerationRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"category", req.Form.Category},
		{"customCategory", req.Form.CustomCategory},
		{"platform", req.Form.Platform},
		{"focus", req.Form.Focus},
		{"style", req.Form.Style},
		{"addons", req.Form.Addons},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if req.Image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, req.Image.Name))
		ct := req.Image.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(req.Image.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
