package models

import "time"

// FeedbackType 反馈类型
type FeedbackType string

const (
	FeedbackRating         FeedbackType = "rating"
	FeedbackFeatureRequest FeedbackType = "feature_request"
	FeedbackBugReport      FeedbackType = "bug_report"
	FeedbackGeneral        FeedbackType = "general"
)

// IsValid 检查反馈类型是否受支持
func (t FeedbackType) IsValid() bool {
	switch t {
	case FeedbackRating, FeedbackFeatureRequest, FeedbackBugReport, FeedbackGeneral:
		return true
	}
	return false
}

// FeedbackEntry represents a single piece of user feedback
type FeedbackEntry struct {
	ID        string       `json:"id" db:"id"`
	UserEmail string       `json:"user_email" db:"user_email"`
	Type      FeedbackType `json:"type" db:"type"`
	Rating    int          `json:"rating,omitempty" db:"rating"` // 1-5, only for type=rating
	Message   string       `json:"message,omitempty" db:"message"`
	Category  string       `json:"category,omitempty" db:"category"`
	Status    string       `json:"status" db:"status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// SubmitFeedbackRequest POST /feedback 请求体
type SubmitFeedbackRequest struct {
	Type     string `json:"type"`
	Rating   int    `json:"rating,omitempty"`
	Message  string `json:"message,omitempty"`
	Category string `json:"category,omitempty"`
}
