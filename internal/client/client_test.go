package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"thumbforge-client/internal/config"
	"thumbforge-client/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() model.GenerationRequest {
	return model.GenerationRequest{
		ID: "req-1",
		Form: model.FormState{
			Category:       model.CategoryOther,
			CustomCategory: "memes",
			Platform:       "youtube",
			Focus:          "pizza",
			Style:          "bold",
			Addons:         "neon outline",
		},
		Image: &model.SelectedImage{Name: "cat.png", ContentType: "image/png", Data: []byte("png-bytes")},
	}
}

// ---------------------------------------------------------------------------
// ThumbnailClient
// ---------------------------------------------------------------------------

func TestThumbnailClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generateThumbnail", r.URL.Path)
		assert.Equal(t, "req-1", r.Header.Get("X-Request-Id"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Other", r.FormValue("category"))
		assert.Equal(t, "memes", r.FormValue("customCategory"))
		assert.Equal(t, "youtube", r.FormValue("platform"))
		assert.Equal(t, "pizza", r.FormValue("focus"))
		assert.Equal(t, "bold", r.FormValue("style"))
		assert.Equal(t, "neon outline", r.FormValue("addons"))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "cat.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		assert.Equal(t, "png-bytes", string(data))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"url":"https://cdn.example/t.png"}}`))
	}))
	defer srv.Close()

	c := NewThumbnailClient(srv.URL+"/", srv.Client())
	uri, err := c.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/t.png", uri)
}

func TestThumbnailClient_WithoutImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("image")
		assert.ErrorIs(t, err, http.ErrMissingFile)
		w.Write([]byte(`{"data":{"url":"https://cdn.example/t.png"}}`))
	}))
	defer srv.Close()

	req := sampleRequest()
	req.Image = nil
	_, err := NewThumbnailClient(srv.URL, srv.Client()).Generate(context.Background(), req)
	require.NoError(t, err)
}

func TestThumbnailClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "server error with message",
			status: http.StatusInternalServerError,
			body:   `{"message":"model overloaded"}`,
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
				assert.Equal(t, "model overloaded", se.Message)
			},
		},
		{
			name:   "bad request with error field",
			status: http.StatusBadRequest,
			body:   `{"error":"image required"}`,
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, "image required", se.Message)
			},
		},
		{
			name:   "missing url",
			status: http.StatusOK,
			body:   `{"data":{}}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrMissingArtifact)
			},
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `<html>`,
			check: func(t *testing.T, err error) {
				require.Error(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewThumbnailClient(srv.URL, srv.Client()).Generate(context.Background(), sampleRequest())
			tt.check(t, err)
		})
	}
}

// ---------------------------------------------------------------------------
// AuthClient
// ---------------------------------------------------------------------------

func TestAuthClient_SignIn(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantToken string
		wantErr   bool
	}{
		{name: "token returned", status: http.StatusOK, body: `{"token":"abc"}`, wantToken: "abc"},
		{name: "no token field", status: http.StatusOK, body: `{"ok":true}`, wantToken: ""},
		{name: "non-json success", status: http.StatusOK, body: `welcome`, wantToken: ""},
		{name: "rejected", status: http.StatusUnauthorized, body: `{"message":"nope"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/signin", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, map[string]string{"username": "ana", "password": "pw"}, body)

				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			token, err := NewAuthClient(srv.URL, srv.Client()).SignIn(context.Background(), "ana", "pw")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestAuthClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewAuthClient(url, http.DefaultClient).SignIn(context.Background(), "ana", "pw")
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// OpenAI provider
// ---------------------------------------------------------------------------

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(sampleRequest().Form)

	assert.Contains(t, prompt, "memes thumbnail")
	assert.Contains(t, prompt, "Youtube (16:9 aspect ratio)")
	assert.Contains(t, prompt, "Focus on: pizza.")
	assert.Contains(t, prompt, "Style: bold.")
	assert.Contains(t, prompt, "Additional instructions: neon outline")

	plain := BuildPrompt(model.FormState{Category: "Tech", Platform: "x", Focus: " ai "})
	assert.NotContains(t, plain, "Style")
	assert.NotContains(t, plain, "Additional")
	assert.Contains(t, plain, "Focus on: ai.")
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/images/edits"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Contains(t, r.FormValue("prompt"), "Focus on: pizza.")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"created":1,"data":[{"url":"https://oai.example/img.png"}]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(config.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1",
		Model:   "dall-e-2",
		Size:    "1024x1024",
	}, srv.Client())

	uri, err := g.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://oai.example/img.png", uri)
}

func TestOpenAIGenerator_RequiresImage(t *testing.T) {
	g := NewOpenAIGenerator(config.OpenAIConfig{APIKey: "sk-test"}, nil)
	req := sampleRequest()
	req.Image = nil

	_, err := g.Generate(context.Background(), req)
	require.ErrorIs(t, err, ErrImageRequired)
}

func TestNewGenerator(t *testing.T) {
	cfg := &config.Config{Service: config.ServiceConfig{Provider: config.ProviderThumbforge, BaseURL: "http://x"}}
	g, err := NewGenerator(cfg, http.DefaultClient)
	require.NoError(t, err)
	assert.IsType(t, &ThumbnailClient{}, g)

	cfg.Service.Provider = config.ProviderOpenAI
	g, err = NewGenerator(cfg, http.DefaultClient)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGenerator{}, g)

	cfg.Service.Provider = "ollama"
	_, err = NewGenerator(cfg, http.DefaultClient)
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Downloader
// ---------------------------------------------------------------------------

func TestDownloader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("remote-image"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(srv.Client())
	d.now = func() time.Time { return time.UnixMilli(1234) }

	path, err := d.Download(context.Background(), srv.URL+"/t.png", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "thumbnail-1234.png"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "remote-image", string(data))

	d.now = func() time.Time { return time.UnixMilli(5678) }
	encoded := base64.StdEncoding.EncodeToString([]byte("inline-image"))
	path, err = d.Download(context.Background(), "data:image/png;base64,"+encoded, dir)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "inline-image", string(data))

	_, err = d.Download(context.Background(), srv.URL+"/missing.png", dir)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)

	for _, uri := range []string{"ftp://example/t.png", "file:///etc/passwd"} {
		_, err = d.Download(context.Background(), uri, dir)
		require.ErrorIs(t, err, ErrUnsupportedURI, uri)
	}
}
