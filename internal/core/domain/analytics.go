package domain

import "time"

// UsageWindow holds usage counters aggregated over one reporting period.
// It is produced by the stats collaborator and consumed read-only.
type UsageWindow struct {
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	TotalSessions    int       `json:"total_sessions"`
	LessonsCompleted int       `json:"lessons_completed"`
	TotalMessages    int       `json:"total_messages"`
}

// PatternSummary is the aggregate conversational signal derived from the
// vector-search collaborator. Ratios are in [0,1].
type PatternSummary struct {
	MessageCount         int     `json:"message_count"`
	AvgMessageLength     float64 `json:"avg_message_length"`
	BusinessFocusRatio   float64 `json:"business_focus"`
	LeadershipFocusRatio float64 `json:"leadership_focus"`
}

// ProgressReport is built once per analytics run and never mutated after
// construction. The three insight lists always hold exactly three items.
type ProgressReport struct {
	ID                  string         `json:"id"`
	UserID              string         `json:"user_id"`
	PeriodStart         time.Time      `json:"period_start"`
	PeriodEnd           time.Time      `json:"period_end"`
	Summary             string         `json:"summary"`
	Strengths           []string       `json:"strengths"`
	AreasForImprovement []string       `json:"areas_for_improvement"`
	Recommendations     []string       `json:"recommendations"`
	EngagementScore     float64        `json:"engagement_score"`
	DetailedAnalysis    map[string]any `json:"detailed_analysis"`
	TotalSessions       int            `json:"total_sessions"`
	LessonsCompleted    int            `json:"lessons_completed"`
	TotalMessages       int            `json:"total_messages"`
	CreatedAt           time.Time      `json:"created_at"`
}

// SearchHit is one scored result from the vector-search collaborator.
// Distance is optional: nil when the store omits distance data.
type SearchHit struct {
	Text     string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Distance *float64       `json:"distance"`
}
