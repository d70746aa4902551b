package domain

import "time"

// Reminder is the in-memory form of a pending schedule handed to the
// scheduler: enough to fire and deliver it without another store read.
type Reminder struct {
	ScheduleID     int64
	SubscriptionID int64
	TaskID         string
	Title          string
	Body           string
	FireAt         time.Time
}

// Reminder returns the schedulable view of s.
func (s *Schedule) Reminder() Reminder {
	return Reminder{
		ScheduleID:     s.ID,
		SubscriptionID: s.SubscriptionID,
		TaskID:         s.TaskID,
		Title:          s.Title,
		Body:           s.Body,
		FireAt:         s.FireAt,
	}
}
