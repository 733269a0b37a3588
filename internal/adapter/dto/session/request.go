package session

// StartSessionRequest starts tracking a meeting. When BotID is empty a new
// Recall bot is created for the meeting URL.
type StartSessionRequest struct {
	MeetingURL string `json:"meeting_url" validate:"required,url"`
	BotID      string `json:"bot_id,omitempty"`
}
