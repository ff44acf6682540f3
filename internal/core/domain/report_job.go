package domain

// ReportJob is the queued request for one analytics run.
type ReportJob struct {
	ReportID string `json:"report_id"`
	UserID   string `json:"user_id"`
	Days     int    `json:"days"`
}
