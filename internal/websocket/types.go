package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeRunStarted marks the start of a pipeline run
	EventTypeRunStarted EventType = "run_started"
	// EventTypeFindings carries per-category finding counts for a run.
	// Only counts are broadcast, never the matched values themselves.
	EventTypeFindings EventType = "findings"
	// EventTypeRunCompleted marks a finished run
	EventTypeRunCompleted EventType = "run_completed"
	// EventTypeRunFailed marks a failed run
	EventTypeRunFailed EventType = "run_failed"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RunID     string      `json:"run_id,omitempty"`
}

// RunEvent describes a pipeline run lifecycle transition
type RunEvent struct {
	RunID      string  `json:"run_id"`
	Document   string  `json:"document"`
	State      string  `json:"state"`
	OutputPath string  `json:"output_path,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms,omitempty"`
}

// FindingsEvent carries finding counts per category for a run
type FindingsEvent struct {
	RunID            string         `json:"run_id"`
	Document         string         `json:"document"`
	CategoryCounts   map[string]int `json:"category_counts"`
	AdditionalLabels int            `json:"additional_labels"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
