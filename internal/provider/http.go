package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// PostJSON marshals body, POSTs it to url and returns the raw response body.
// A non-2xx status becomes a *VendorError carrying the status and raw body;
// callers never see an unsuccessful body as data.
func PostJSON(ctx context.Context, client *http.Client, vendor, url string, header http.Header, body any) (json.RawMessage, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: encode request: %w", vendor, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s: read response: %w", vendor, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &VendorError{Provider: vendor, Status: resp.StatusCode, Body: string(respBody)}
	}

	if !json.Valid(respBody) {
		return nil, resp.StatusCode, fmt.Errorf("%s: response is not valid json", vendor)
	}
	return respBody, resp.StatusCode, nil
}

// ResolveMaxTokens applies the model ceiling to the caller's max tokens.
// When the caller sets none, the ceiling is the default, then fallback;
// nil leaves the vendor default in place.
func ResolveMaxTokens(requested *int, ceiling, fallback int) *int {
	if requested != nil && *requested > 0 {
		n := *requested
		if ceiling > 0 && n > ceiling {
			n = ceiling
		}
		return &n
	}
	if ceiling > 0 {
		return &ceiling
	}
	if fallback > 0 {
		return &fallback
	}
	return nil
}

// DataText serializes structured-data input as JSON, so a string value is
// sent quoted. Raw JSON passes through unchanged.
func DataText(data any) (string, error) {
	switch v := data.(type) {
	case nil:
		return "", nil
	case json.RawMessage:
		return string(v), nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode data: %w", err)
	}
	return string(b), nil
}

// Unsupported builds the uniform 400 response returned for operations a
// vendor or model cannot serve. It is not an error and is never billed.
func Unsupported(content, reason, suggestion string) *Response {
	body, _ := json.Marshal(map[string]string{
		"error":      reason,
		"suggestion": suggestion,
	})
	return &Response{
		Content:      content,
		FullResponse: body,
		Status:       http.StatusBadRequest,
	}
}

// IntPtr is a small helper for building optional fields.
func IntPtr(n int) *int { return &n }
