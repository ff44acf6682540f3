package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/coaching-backend/internal/core/domain"
	"github.com/avolkov/coaching-backend/internal/core/ports"
)

// Client maps the conversation archive onto qdrant collections, one
// collection per namespace. Texts are embedded through the configured
// embedder before they are written or matched.
type Client struct {
	baseURL    string
	embedder   ports.Embedder
	httpClient *http.Client

	ensureMu sync.Mutex
	ensured  map[string]int
}

func New(baseURL string, embedder ports.Embedder) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		ensured:    map[string]int{},
	}
}

func (c *Client) Store(ctx context.Context, namespace, text string, metadata map[string]any) (string, error) {
	if text == "" {
		return "", fmt.Errorf("empty text")
	}

	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed text: %w", err)
	}
	if err := c.ensureCollection(ctx, namespace, len(vector)); err != nil {
		return "", err
	}

	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	payload["text"] = text

	pointID := uuid.NewString()
	reqBody := map[string]any{
		"points": []map[string]any{
			{"id": pointID, "vector": vector, "payload": payload},
		},
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, namespace)
	if err := c.do(ctx, http.MethodPut, url, reqBody, nil, "upsert"); err != nil {
		return "", err
	}
	return pointID, nil
}

func (c *Client) Query(ctx context.Context, namespace, queryText string, k int, filter map[string]any) ([]domain.SearchHit, error) {
	if k <= 0 {
		k = 5
	}

	vector, err := c.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if cond := matchConditions(filter); cond != nil {
		reqBody["filter"] = map[string]any{"must": cond}
	}

	var searchResp struct {
		Result []struct {
			Score   *float64       `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, namespace)
	if err := c.do(ctx, http.MethodPost, url, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.SearchHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		text := getStringPayload(r.Payload, "text")
		metadata := make(map[string]any, len(r.Payload))
		for key, value := range r.Payload {
			if key == "text" {
				continue
			}
			metadata[key] = value
		}
		out = append(out, domain.SearchHit{
			Text:     text,
			Metadata: metadata,
			Distance: r.Score,
		})
	}
	return out, nil
}

// DeleteWhere removes every point matching the filter and reports how many
// points matched at the time of the call.
func (c *Client) DeleteWhere(ctx context.Context, namespace string, filter map[string]any) (int, error) {
	cond := matchConditions(filter)
	if cond == nil {
		return 0, fmt.Errorf("empty delete filter")
	}
	qfilter := map[string]any{"must": cond}

	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	countURL := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, namespace)
	if err := c.do(ctx, http.MethodPost, countURL, map[string]any{"filter": qfilter, "exact": true}, &countResp, "count"); err != nil {
		return 0, err
	}
	if countResp.Result.Count == 0 {
		return 0, nil
	}

	deleteURL := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, namespace)
	if err := c.do(ctx, http.MethodPost, deleteURL, map[string]any{"filter": qfilter}, nil, "delete"); err != nil {
		return 0, err
	}
	return countResp.Result.Count, nil
}

func (c *Client) ensureCollection(ctx context.Context, namespace string, vectorSize int) error {
	c.ensureMu.Lock()
	if size, ok := c.ensured[namespace]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, namespace)
	err := c.do(ctx, http.MethodPut, url, reqBody, nil, "ensure collection")
	// 409 means the collection already exists; do() maps it to statusError.
	var statusErr *statusError
	if err != nil {
		if !errors.As(err, &statusErr) || statusErr.code != http.StatusConflict {
			return err
		}
	}

	c.ensureMu.Lock()
	c.ensured[namespace] = vectorSize
	c.ensureMu.Unlock()
	return nil
}

type statusError struct {
	operation string
	code      int
	status    string
	body      string
}

func (e *statusError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, e.body)
	}
	return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
}

func (c *Client) do(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			operation: operation,
			code:      resp.StatusCode,
			status:    resp.Status,
			body:      strings.TrimSpace(string(excerpt)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// matchConditions translates a flat equality filter into qdrant match
// clauses. A nil or empty filter yields nil.
func matchConditions(filter map[string]any) []map[string]any {
	if len(filter) == 0 {
		return nil
	}
	cond := make([]map[string]any, 0, len(filter))
	for key, value := range filter {
		cond = append(cond, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	return cond
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
