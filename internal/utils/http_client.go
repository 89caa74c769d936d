package utils

import (
	"bytes"
	"crypto/tls"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"thumbforge-client/pkg/logger"

	"github.com/sirupsen/logrus"
)

// NewHTTPClient builds the client used for remote calls. A zero timeout
// leaves the request bounded only by its context and the transport.
func NewHTTPClient(timeout time.Duration, debug bool) *http.Client {
	var transport http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if debug {
		transport = NewDebugTransport(transport)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// DebugTransport logs outgoing requests at debug level with credentials
// redacted. Multipart bodies are summarized, never dumped.
type DebugTransport struct {
	base http.RoundTripper
}

func NewDebugTransport(base http.RoundTripper) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{base: base}
}

var sensitiveHeaders = []string{"Authorization", "Cookie", "X-Api-Key", "X-Auth-Token"}

var sensitiveJSON = regexp.MustCompile(`"(password|token|api_key|apiKey|secret)"\s*:\s*"[^"]*"`)

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	fields := logrus.Fields{
		"method": req.Method,
		"url":    req.URL.String(),
	}
	for _, name := range sensitiveHeaders {
		if req.Header.Get(name) != "" {
			fields[strings.ToLower(name)] = "[REDACTED]"
		}
	}

	contentType := req.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/"):
		fields["body"] = "(multipart)"
	case req.Body != nil && req.GetBody != nil:
		if body, err := req.GetBody(); err == nil {
			data, _ := io.ReadAll(body)
			body.Close()
			fields["body"] = RedactJSON(string(data))
		}
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	fields["elapsed"] = time.Since(start).String()

	log := logger.WithFields(fields)
	if err != nil {
		log.Debugf("request failed: %v", err)
		return nil, err
	}
	log.WithField("status", resp.StatusCode).Debug("request completed")
	return resp, nil
}

// RedactJSON masks the values of credential-bearing JSON string fields.
func RedactJSON(s string) string {
	return sensitiveJSON.ReplaceAllString(s, `"$1":"[REDACTED]"`)
}

// ReadLimited reads at most limit bytes of r, for error bodies.
func ReadLimited(r io.Reader, limit int64) []byte {
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, io.LimitReader(r, limit))
	return buf.Bytes()
}
