package models

import "time"

// VoteType 投票方向
type VoteType string

const (
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

// IsValid 检查投票方向是否受支持
func (t VoteType) IsValid() bool {
	return t == VoteUp || t == VoteDown
}

// FeatureSuggestion represents a user-proposed feature that others can vote on
type FeatureSuggestion struct {
	ID          string    `json:"id" db:"id"`
	UserEmail   string    `json:"user_email" db:"user_email"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	VoteCount   int       `json:"vote_count" db:"vote_count"`
	Status      string    `json:"status" db:"status"`
	Category    string    `json:"category,omitempty" db:"category"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// FeatureVote 单个用户对某个功能建议的投票（每人每建议一票）
type FeatureVote struct {
	ID        string    `json:"id" db:"id"`
	UserEmail string    `json:"user_email" db:"user_email"`
	FeatureID string    `json:"feature_id" db:"feature_id"`
	VoteType  VoteType  `json:"vote_type" db:"vote_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SubmitFeatureRequest POST /features 请求体
type SubmitFeatureRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// VoteRequest POST /features/vote 请求体
type VoteRequest struct {
	FeatureID string `json:"feature_id"`
	VoteType  string `json:"vote_type"`
}
