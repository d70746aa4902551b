// Package store defines interfaces for reminder persistence.
// These interfaces abstract the underlying data storage mechanism from
// the scheduling logic, so business rules stay independent of the
// database driver in use.
package store
