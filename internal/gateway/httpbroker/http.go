package httpbroker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"janus/internal/config"
	"janus/internal/errs"
)

// doJSONRequest executes a JSON request/response round-trip against the
// account's REST endpoint. Every Gateway method that touches the network
// runs on the calling goroutine from the server's worker pool, never on the
// EventBus worker, per the threading model.
func doJSONRequest(ctx context.Context, client *http.Client, baseURL string, cfg config.AccountConfig, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errs.NewInvalidIntent(fmt.Sprintf("encoding request body: %v", err))
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reqBody)
	if err != nil {
		return errs.NewBrokerTransient(name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token, ok := cfg.Credentials["access_token"]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errs.NewBrokerTransient(name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return errs.NewBrokerTransient(name, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return errs.NewBrokerPermanent(name, fmt.Errorf("status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return errs.NewBrokerTransient(name, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}
