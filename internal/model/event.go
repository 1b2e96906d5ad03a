package model

import "time"

type EventType string

const (
	EventCreate EventType = "CREATE"
	EventWrite  EventType = "WRITE"
	EventRemove EventType = "REMOVE"
	EventRename EventType = "RENAME"
)

// FileEvent is one change observed under a watched project root.
type FileEvent struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}
