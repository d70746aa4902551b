// Package domain contains the reminder entities of the system: push
// subscriptions and the reminder schedules that target them. It holds the
// validation rules that must hold before anything is persisted and is
// independent of storage and transport.
package domain
