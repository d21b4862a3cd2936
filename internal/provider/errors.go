package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnsupportedModel means no registered catalog contains the model id.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrUnsupportedModelForCost means a calculator has no pricing for a
	// model its own adapter served. That is a catalog bug, never a zero cost.
	ErrUnsupportedModelForCost = errors.New("no pricing for model")
)

// VendorError is a non-2xx vendor reply. Body is the raw vendor body.
type VendorError struct {
	Provider string
	Status   int
	Body     string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.Status, e.Body)
}

// Error is the single normalized error shape returned to callers.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
	Status  int    `json:"status"`

	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Code, e.Status)
}

func (e *Error) Unwrap() error { return e.cause }

// ErrorBodyParser extracts message, code and type from a vendor error body.
// ok is false when the body is not in the vendor's error envelope.
type ErrorBodyParser func(body []byte) (message, code, typ string, ok bool)

// NormalizeError converts any adapter failure into an *Error. Vendor bodies
// are decoded with parse; everything else keeps its message.
func NormalizeError(err error, parse ErrorBodyParser) *Error {
	if err == nil {
		return nil
	}
	var normalized *Error
	if errors.As(err, &normalized) {
		return normalized
	}

	var vendorErr *VendorError
	if errors.As(err, &vendorErr) {
		out := &Error{
			Message: vendorErr.Body,
			Code:    "VENDOR_ERROR",
			Type:    http.StatusText(vendorErr.Status),
			Status:  vendorErr.Status,
			cause:   err,
		}
		if parse != nil {
			if msg, code, typ, ok := parse([]byte(vendorErr.Body)); ok {
				if msg != "" {
					out.Message = msg
				}
				if code != "" {
					out.Code = code
				}
				if typ != "" {
					out.Type = typ
				}
			}
		}
		return out
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Message: err.Error(), Code: "TIMEOUT", Type: "Timeout", Status: http.StatusGatewayTimeout, cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Message: err.Error(), Code: "CANCELED", Type: "Canceled", Status: 499, cause: err}
	}
	return &Error{Message: err.Error(), Code: "UNKNOWN_ERROR", Type: "Error", Status: http.StatusInternalServerError, cause: err}
}
