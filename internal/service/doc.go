// Package service contains the reminder use cases behind the HTTP surface.
//
// ReminderService persists subscriptions and schedules through the store
// interfaces and keeps the in-process Scheduler in step with storage: every
// accepted or rescheduled reminder is submitted, every cancelled one is
// withdrawn. It depends on ports declared here, never on a concrete database
// or push implementation.
package service
