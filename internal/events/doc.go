// Package events carries reminder lifecycle notifications from the
// scheduler to observers such as metrics, without the scheduler knowing
// who listens.
package events
