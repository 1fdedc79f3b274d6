// Package domain defines the core business entities of the task workflow
// application: users, tasks, the task status enum, and the human-readable
// task code scheme.
package domain
