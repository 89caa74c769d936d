package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"thumbforge-client/internal/utils"
)

type AuthClient struct {
	baseURL string
	http    *http.Client
}

func NewAuthClient(baseURL string, httpClient *http.Client) *AuthClient {
	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signInResponse struct {
	Token string `json:"token"`
}

// SignIn returns the token from a successful response, or "" when the
// response had none.
func (c *AuthClient) SignIn(ctx context.Context, username, password string) (string, error) {
	data, err := json.Marshal(signInRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/signin", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newStatusError(resp.StatusCode, utils.ReadLimited(resp.Body, 64<<10))
	}

	// a success body that is not the expected JSON counts as "no token"
	var out signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil
	}
	return out.Token, nil
}
