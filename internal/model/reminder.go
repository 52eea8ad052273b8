package model

import "time"

// ScheduledReminder is a local notification handed to the reminder backend.
type ScheduledReminder struct {
	ID        string    `json:"id"`
	ExamID    string    `json:"exam_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	TriggerAt time.Time `json:"trigger_at"`
}
