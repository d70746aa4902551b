// Package task runs background work on a bounded pool of workers. Due
// reminders are handed to it as delivery tasks so that slow push services
// never stall the scheduler's timer loop.
package task
