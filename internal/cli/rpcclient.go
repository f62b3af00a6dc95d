package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// rpcClient is a thin HTTP client for a running janusd server's REST
// surface, used by CLI commands that report on a live server rather than
// wiring their own copy of the server's collaborators.
type rpcClient struct {
	baseURL string
	http    *http.Client
}

func newRPCClient(addr string) *rpcClient {
	return &rpcClient{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type rpcErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type brokerListEntry struct {
	Alias     string `json:"alias"`
	Broker    string `json:"broker"`
	IsDefault bool   `json:"is_default"`
}

type harmonySummary struct {
	Filled           int `json:"filled"`
	SkippedAmbiguous int `json:"skipped_ambiguous"`
	SkippedNoMatch   int `json:"skipped_no_match"`
	Errors           int `json:"errors"`
}

func (c *rpcClient) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("calling janusd at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	return decodeRPCResponse(resp, out)
}

func (c *rpcClient) post(path string, out interface{}) error {
	resp, err := c.http.Post(c.baseURL+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("calling janusd at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	return decodeRPCResponse(resp, out)
}

func decodeRPCResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 400 {
		var envelope rpcErrorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("janusd returned %s", resp.Status)
		}
		return fmt.Errorf("janusd error [%s]: %s", envelope.Code, envelope.Message)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *rpcClient) BrokerList() ([]brokerListEntry, error) {
	var out []brokerListEntry
	if err := c.get("/api/v1/brokers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rpcClient) Harmony() (harmonySummary, error) {
	var out harmonySummary
	if err := c.post("/api/v1/harmony", &out); err != nil {
		return harmonySummary{}, err
	}
	return out, nil
}
