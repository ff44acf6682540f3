package domain

// CoachingRequest describes one coaching conversation turn. History is
// chronological and preserved as given.
type CoachingRequest struct {
	UserID        string
	SessionID     string
	Message       string
	History       []ConversationTurn
	LessonContext *LessonDraft
	Provider      Provider
}
