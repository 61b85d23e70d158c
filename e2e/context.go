package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TestContext carries one scenario's HTTP state against a running server.
type TestContext struct {
	BaseURL string

	client   *http.Client
	status   int
	body     []byte
	response map[string]any
	saved    map[string]string
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		saved:   map[string]string{},
	}
}

// Reset clears the state left by a previous scenario.
func (tc *TestContext) Reset() {
	tc.status = 0
	tc.body = nil
	tc.response = nil
	tc.saved = map[string]string{}
}

func (tc *TestContext) PostForm(path string, form url.Values) error {
	resp, err := tc.client.PostForm(tc.BaseURL+path, form)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return tc.capture(resp)
}

func (tc *TestContext) GET(path string) error {
	resp, err := tc.client.Get(tc.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return tc.capture(resp)
}

func (tc *TestContext) capture(resp *http.Response) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.status = resp.StatusCode
	tc.body = body
	tc.response = nil
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		tc.response = decoded
	}
	return nil
}

func (tc *TestContext) Status() int { return tc.status }

func (tc *TestContext) Body() string { return string(tc.body) }

// GetResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	if tc.response == nil {
		return nil, fmt.Errorf("last response was not JSON: %s", tc.body)
	}
	v, ok := tc.response[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response: %s", field, tc.body)
	}
	return v, nil
}

func (tc *TestContext) Save(key, value string) { tc.saved[key] = value }

func (tc *TestContext) Saved(key string) (string, error) {
	v, ok := tc.saved[key]
	if !ok {
		return "", fmt.Errorf("nothing saved as %q", key)
	}
	return v, nil
}
