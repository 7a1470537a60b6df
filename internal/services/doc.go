// Package services defines the shared error taxonomy and context helpers
// used across pipeline stages and their collaborator clients. Stage failures
// are tagged with sentinel markers so the orchestrator can classify them
// (retryable vs terminal) without inspecting error strings.
package services
