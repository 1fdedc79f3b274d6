// Package service implements the task workflow: creation with code
// allocation, listing and filtering, owner-guarded mutation, and the
// controlled status transitions.
package service
