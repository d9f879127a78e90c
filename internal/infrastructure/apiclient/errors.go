package apiclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"
	"resty.dev/v3"

	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

const statusKey = "status"

// classify turns a transport result into a typed platform error, or nil on success.
func classify(ctx context.Context, operation string, resp *resty.Response, err error, body enveloped, errBody *envelope) error {
	if err != nil {
		if pe := platformerrors.GetPlatformError(err); pe != nil {
			return pe
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return platformerrors.NewError(ctx, platformerrors.LayerGateway, platformerrors.ErrorTypeNetwork,
				"chat backend temporarily unavailable", err, "b1c2d3e4-f5a6-4b7c-8d9e-0f1a2b3c4d5e")
		}
		return platformerrors.NewError(ctx, platformerrors.LayerGateway, platformerrors.ErrorTypeNetwork,
			fmt.Sprintf("%s: could not reach the chat backend", operation), err, "c2d3e4f5-a6b7-4c8d-9e0f-1a2b3c4d5e6f")
	}

	status := resp.StatusCode()
	if resp.IsError() {
		message := errorMessage(errBody)
		if message == "" {
			message = fmt.Sprintf("%s failed with status %d", operation, status)
		}
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerGateway, platformerrors.TypeFromHTTPStatus(status),
			message, nil, "d3e4f5a6-b7c8-4d9e-8f1a-2b3c4d5e6f7a", map[string]any{statusKey: status, "operation": operation})
	}

	if body != nil && !body.status().Success {
		message := errorMessage(body.status())
		if message == "" {
			message = fmt.Sprintf("%s was rejected by the chat backend", operation)
		}
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerGateway, platformerrors.ErrorTypeServerRejected,
			message, nil, "e4f5a6b7-c8d9-4e0f-9a2b-3c4d5e6f7a8b", map[string]any{statusKey: status, "operation": operation})
	}
	return nil
}

func errorMessage(e *envelope) string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.Error); msg != "" {
		return msg
	}
	return strings.TrimSpace(e.Message)
}

// transient reports whether err should count against the circuit breaker:
// transport failures and 5xx responses do, client errors do not.
func transient(err error) bool {
	if err == nil {
		return false
	}
	pe := platformerrors.GetPlatformError(err)
	if pe == nil {
		return true
	}
	if pe.Type == platformerrors.ErrorTypeNetwork {
		return true
	}
	status, _ := pe.Context[statusKey].(int)
	return status >= 500
}
