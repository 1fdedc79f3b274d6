// Package store defines the persistence interfaces and shared database
// plumbing used by the service layer. Concrete implementations live in
// internal/platform/postgres.
package store
