package openai

import (
	"context"
	"errors"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

const collaboratorName = "openai"

// classify wraps a client error as a CollaboratorError. Rate limits, server
// errors and network timeouts are transient; other client errors are not.
// Context errors pass through untouched so the caller can tell cancellation
// from failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return &entity.CollaboratorError{
		Collaborator: collaboratorName,
		Op:           op,
		Transient:    isTransient(err),
		Err:          err,
	}
}

func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// malformed reports a response that did not decode. The model may do better
// on a second attempt.
func malformed(op string, err error) error {
	return &entity.CollaboratorError{
		Collaborator: collaboratorName,
		Op:           op,
		Transient:    true,
		Err:          err,
	}
}
