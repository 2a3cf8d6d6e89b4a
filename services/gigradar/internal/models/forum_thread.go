package models

import "time"

const (
	DecisionYes = "Yes"
	DecisionNo  = "No"
)

type ForumThread struct {
	Link         string     `json:"link"`
	ThreadID     string     `json:"thread_id,omitempty"`
	Title        string     `json:"title"`
	Author       string     `json:"author,omitempty"`
	Replies      *int       `json:"replies,omitempty"`
	Views        *int       `json:"views,omitempty"`
	PostedAt     *time.Time `json:"posted_at,omitempty"`
	Description  string     `json:"description"`
	Decision     string     `json:"decision"`
	PostedToChat bool       `json:"posted_to_chat"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ThreadApprovedEvent is published when a stored thread is classified Yes.
type ThreadApprovedEvent struct {
	ID         string    `json:"id"`
	Link       string    `json:"link"`
	Title      string    `json:"title"`
	ApprovedAt time.Time `json:"approved_at"`
}
