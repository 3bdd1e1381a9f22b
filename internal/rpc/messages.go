package rpc

import (
	"encoding/json"
	"time"
)

// Task is a row of the remote task table. Client-only attributes such as the
// completion timestamp are not part of it.
type Task struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"ownerId"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Status           string     `json:"status"`
	Label            string     `json:"label,omitempty"`
	Priority         string     `json:"priority,omitempty"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	ImageURL         string     `json:"imageUrl,omitempty"`
	Order            float64    `json:"order"`
	Completed        bool       `json:"completed"`
	CompletionReason string     `json:"completionReason,omitempty"`
	Selected         bool       `json:"selected"`
	IsArchived       bool       `json:"isArchived"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// QueryTasksRequest selects every row of the caller.
type QueryTasksRequest struct{}

type QueryTasksResponse struct {
	Tasks []*Task `json:"tasks"`
}

// InsertTaskRequest carries the row to create. The server assigns id, owner
// and timestamps.
type InsertTaskRequest struct {
	Task *Task `json:"task"`
}

type InsertTaskResponse struct {
	Task *Task `json:"task"`
}

// UpdateTaskRequest carries a partial row: only the keys present in Patch
// are changed, and a null value clears the attribute.
type UpdateTaskRequest struct {
	ID    string          `json:"id"`
	Patch json.RawMessage `json:"patch"`
}

type UpdateTaskResponse struct {
	Task *Task `json:"task"`
}

type DeleteTaskRequest struct {
	ID string `json:"id"`
}

type DeleteTaskResponse struct{}

type SubscribeTaskEventsRequest struct{}

type EventType string

const (
	EventInserted EventType = "INSERTED"
	EventUpdated  EventType = "UPDATED"
	EventDeleted  EventType = "DELETED"
)

// TaskEvent is one row change pushed to subscribers. Task is set for
// inserts and updates; TaskID is always set.
type TaskEvent struct {
	ID      string     `json:"id"`
	Type    EventType  `json:"type"`
	OwnerID string     `json:"ownerId"`
	TaskID  string     `json:"taskId"`
	Task    *Task `json:"task,omitempty"`
	At      time.Time  `json:"at"`
}

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Session struct {
	AccessToken string    `json:"accessToken"`
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type AuthResponse struct {
	Session *Session `json:"session"`
}

// Me is the body of GET /api/me.
type Me struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}
