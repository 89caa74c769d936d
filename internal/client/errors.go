package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var ErrMissingArtifact = errors.New("response carried no artifact url")

// StatusError reports a non-success HTTP status from the remote service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote service returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("remote service returned %d: %s", e.StatusCode, e.Message)
}

// errorBody covers the error shapes the service is known to send.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func newStatusError(status int, body []byte) *StatusError {
	var eb errorBody
	msg := ""
	if json.Unmarshal(body, &eb) == nil {
		msg = eb.Message
		if msg == "" {
			msg = eb.Error
		}
	}
	return &StatusError{StatusCode: status, Message: msg}
}
