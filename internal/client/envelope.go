package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// decodeList accepts a bare JSON array or an object carrying the array under
// one of keys.
func decodeList[T any](raw []byte, keys ...string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrUnexpectedShape
	}

	if raw[0] == '[' {
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return out, nil
	}

	inner, err := unwrap(raw, keys)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(bytes.TrimSpace(inner), []byte("null")) {
		return []T{}, nil
	}

	var out []T
	if err := json.Unmarshal(inner, &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}

	return out, nil
}

// decodeObject accepts an object wrapped under one of keys or the bare object.
func decodeObject[T any](raw []byte, keys ...string) (T, error) {
	var out T

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return out, ErrUnexpectedShape
	}

	inner, err := unwrap(raw, keys)
	if err != nil {
		inner = raw
	}

	if err := json.Unmarshal(inner, &out); err != nil {
		return out, fmt.Errorf("decode object: %w", err)
	}

	return out, nil
}

func unwrap(raw []byte, keys []string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, ErrUnexpectedShape
	}

	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v, nil
		}
	}

	return nil, ErrUnexpectedShape
}

// readError extracts the user-facing message of a failed response. It reads
// {"message": ...}, {"error": {"message": ...}} and {"error": "..."}, and
// falls back to the status text.
func readError(resp *http.Response) (int, string) {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}

	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return resp.StatusCode, payload.Message
		}

		if len(payload.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
				return resp.StatusCode, nested.Message
			}

			var text string
			if err := json.Unmarshal(payload.Error, &text); err == nil && text != "" {
				return resp.StatusCode, text
			}
		}
	}

	if text := http.StatusText(resp.StatusCode); text != "" {
		return resp.StatusCode, text
	}

	return resp.StatusCode, resp.Status
}
