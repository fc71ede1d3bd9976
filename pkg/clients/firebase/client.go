package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"mint-desk/pkg/models"
	"mint-desk/pkg/store"
)

// Client defines the interface for interacting with the Realtime Database REST API
type Client interface {
	store.Collection
}

type clientImpl struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a new Realtime Database client. databaseURL is the
// instance root, e.g. https://example-default-rtdb.firebaseio.com/
func NewClient(databaseURL, authToken string, httpClient *http.Client, log *zap.Logger) Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &clientImpl{
		baseURL:    strings.TrimRight(databaseURL, "/"),
		authToken:  authToken,
		httpClient: httpClient,
		log:        log,
	}
}

func (c *clientImpl) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// nodeURL builds <base>/<path>.json with the auth parameter and extra query.
func (c *clientImpl) nodeURL(path string, query url.Values) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	if query == nil {
		query = url.Values{}
	}
	if c.authToken != "" {
		query.Set("auth", c.authToken)
	}
	u := fmt.Sprintf("%s/%s.json", c.baseURL, strings.Join(segments, "/"))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *clientImpl) do(ctx context.Context, method, u string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error creating payload: %w", err)
		}
		body = bytes.NewReader(jsonPayload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if payload != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling Realtime Database: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error from Realtime Database (%d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *clientImpl) Append(ctx context.Context, path string, rec models.SubmissionRecord) (string, error) {
	body, err := c.do(ctx, http.MethodPost, c.nodeURL(path, nil), rec)
	if err != nil {
		return "", err
	}

	var response struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if response.Name == "" {
		return "", fmt.Errorf("push returned no key")
	}

	c.log.Debug("created record", zap.String("path", path), zap.String("key", response.Name))
	return response.Name, nil
}

func (c *clientImpl) ReadAll(ctx context.Context, path string) ([]store.Entry, error) {
	body, err := c.do(ctx, http.MethodGet, c.nodeURL(path, nil), nil)
	if err != nil {
		return nil, err
	}
	return decodeCollection(body)
}

// decodeCollection turns a keyed JSON object into entries ordered by key.
// Push keys sort chronologically, so key order is insertion order.
func decodeCollection(body []byte) ([]store.Entry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error parsing collection: %w", err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]store.Entry, 0, len(keys))
	for _, k := range keys {
		var rec models.SubmissionRecord
		if err := json.Unmarshal(raw[k], &rec); err != nil {
			return nil, fmt.Errorf("error parsing record %s: %w", k, err)
		}
		out = append(out, store.Entry{Key: k, Record: rec})
	}
	return out, nil
}

func (c *clientImpl) Patch(ctx context.Context, path, key string, fields map[string]any) error {
	node := strings.Trim(path, "/") + "/" + key

	// PATCH creates missing nodes, so check existence first
	body, err := c.do(ctx, http.MethodGet, c.nodeURL(node, url.Values{"shallow": {"true"}}), nil)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) == "null" {
		return store.ErrNotFound
	}

	if _, err := c.do(ctx, http.MethodPatch, c.nodeURL(node, nil), fields); err != nil {
		return err
	}
	c.log.Debug("patched record", zap.String("path", path), zap.String("key", key))
	return nil
}
