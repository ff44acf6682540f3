package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

const patternScrollPageSize = 256

var (
	businessKeywords   = []string{"client", "customer", "sale", "business", "meeting", "negotiation"}
	leadershipKeywords = []string{"team", "leader", "manage", "decision", "strategy"}
)

// AnalyzePatterns scrolls every archived user turn for the given user and
// reduces it to length and topic-focus aggregates. A user with no archived
// turns yields a zero summary, not an error.
func (c *Client) AnalyzePatterns(ctx context.Context, userID string) (domain.PatternSummary, error) {
	if userID == "" {
		return domain.PatternSummary{}, fmt.Errorf("empty user id")
	}

	texts, err := c.scrollUserTexts(ctx, fmt.Sprintf("user_%s_sessions", userID))
	if err != nil {
		return domain.PatternSummary{}, err
	}
	if len(texts) == 0 {
		return domain.PatternSummary{}, nil
	}

	totalLen := 0
	businessHits := 0
	leadershipHits := 0
	for _, text := range texts {
		// Character count, not byte count; CJK text would otherwise
		// inflate the average threefold.
		totalLen += utf8.RuneCountInString(text)
		lower := strings.ToLower(text)
		if containsAny(lower, businessKeywords) {
			businessHits++
		}
		if containsAny(lower, leadershipKeywords) {
			leadershipHits++
		}
	}

	count := len(texts)
	return domain.PatternSummary{
		MessageCount:         count,
		AvgMessageLength:     float64(totalLen) / float64(count),
		BusinessFocusRatio:   float64(businessHits) / float64(count),
		LeadershipFocusRatio: float64(leadershipHits) / float64(count),
	}, nil
}

func (c *Client) scrollUserTexts(ctx context.Context, namespace string) ([]string, error) {
	var (
		texts  []string
		offset any
	)
	for {
		reqBody := map[string]any{
			"limit":        patternScrollPageSize,
			"with_payload": true,
			"filter": map[string]any{
				"must": []map[string]any{
					{"key": "role", "match": map[string]any{"value": "user"}},
				},
			},
		}
		if offset != nil {
			reqBody["offset"] = offset
		}

		var scrollResp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		url := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, namespace)
		if err := c.do(ctx, http.MethodPost, url, reqBody, &scrollResp, "scroll"); err != nil {
			// A user who never chatted has no collection yet.
			var statusErr *statusError
			if errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound {
				return nil, nil
			}
			return nil, err
		}

		for _, p := range scrollResp.Result.Points {
			if text := getStringPayload(p.Payload, "text"); text != "" {
				texts = append(texts, text)
			}
		}

		if scrollResp.Result.NextPageOffset == nil {
			return texts, nil
		}
		offset = scrollResp.Result.NextPageOffset
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
