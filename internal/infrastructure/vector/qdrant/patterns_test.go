package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnalyzePatternsAggregatesUserTurns(t *testing.T) {
	var scrollReq map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/user_9_sessions/points/scroll" {
			if err := json.NewDecoder(r.Body).Decode(&scrollReq); err != nil {
				t.Errorf("decode scroll: %v", err)
			}
			_, _ = w.Write([]byte(`{"result":{"points":[
				{"payload":{"text":"my client pushed back on price","role":"user"}},
				{"payload":{"text":"how should my team handle this decision","role":"user"}},
				{"payload":{"text":"thanks","role":"user"}},
				{"payload":{"text":"the sale closed and the team celebrated","role":"user"}}
			],"next_page_offset":null}}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, &fixedEmbedder{vector: []float32{0.1}})
	summary, err := client.AnalyzePatterns(context.Background(), "9")
	if err != nil {
		t.Fatalf("AnalyzePatterns() error = %v", err)
	}

	if summary.MessageCount != 4 {
		t.Fatalf("MessageCount = %d, want 4", summary.MessageCount)
	}
	// "client ... price" and "sale ..." match business keywords.
	if summary.BusinessFocusRatio != 0.5 {
		t.Fatalf("BusinessFocusRatio = %v, want 0.5", summary.BusinessFocusRatio)
	}
	// "team ... decision" and "team celebrated" match leadership keywords.
	if summary.LeadershipFocusRatio != 0.5 {
		t.Fatalf("LeadershipFocusRatio = %v, want 0.5", summary.LeadershipFocusRatio)
	}
	if summary.AvgMessageLength <= 0 {
		t.Fatalf("AvgMessageLength = %v", summary.AvgMessageLength)
	}

	filter, ok := scrollReq["filter"].(map[string]any)
	if !ok {
		t.Fatalf("scroll request has no role filter: %#v", scrollReq)
	}
	if _, ok := filter["must"]; !ok {
		t.Fatalf("filter has no must clause: %#v", filter)
	}
}

func TestAnalyzePatternsCountsCharactersNotBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Two 10-character messages, one of them CJK (30 bytes in UTF-8).
		_, _ = w.Write([]byte(`{"result":{"points":[
			{"payload":{"text":"十个汉字十个汉字十个","role":"user"}},
			{"payload":{"text":"ten  chars","role":"user"}}
		],"next_page_offset":null}}`))
	}))
	defer server.Close()

	client := New(server.URL, &fixedEmbedder{vector: []float32{0.1}})
	summary, err := client.AnalyzePatterns(context.Background(), "9")
	if err != nil {
		t.Fatalf("AnalyzePatterns() error = %v", err)
	}
	if summary.AvgMessageLength != 10 {
		t.Fatalf("AvgMessageLength = %v, want 10", summary.AvgMessageLength)
	}
}

func TestAnalyzePatternsFollowsPagination(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"result":{"points":[{"payload":{"text":"first page"}}],"next_page_offset":"cursor-2"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":{"points":[{"payload":{"text":"second page"}}],"next_page_offset":null}}`))
	}))
	defer server.Close()

	client := New(server.URL, &fixedEmbedder{vector: []float32{0.1}})
	summary, err := client.AnalyzePatterns(context.Background(), "9")
	if err != nil {
		t.Fatalf("AnalyzePatterns() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 scroll calls, got %d", calls)
	}
	if summary.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2", summary.MessageCount)
	}
}

func TestAnalyzePatternsMissingCollectionYieldsZeroSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, &fixedEmbedder{vector: []float32{0.1}})
	summary, err := client.AnalyzePatterns(context.Background(), "9")
	if err != nil {
		t.Fatalf("AnalyzePatterns() error = %v", err)
	}
	if summary.MessageCount != 0 || summary.AvgMessageLength != 0 {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}
