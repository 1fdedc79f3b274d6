// Package api implements the HTTP handlers for authentication and the
// task workflow, shaping every response into the uniform envelope.
package api
