package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"plenary/internal/identity"
	"plenary/internal/records"
)

// resolveSessionArg accepts either a session ID or a source URL and returns
// the session ID. URLs collapse through the same canonicalization the
// pipeline uses, so any equivalent spelling names the same session.
func resolveSessionArg(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("session id or URL is required")
	}
	if strings.Contains(arg, "://") {
		id, err := identity.Resolve(arg)
		if err != nil {
			return "", fmt.Errorf("resolve session URL %q: %w", arg, err)
		}
		return id, nil
	}
	return arg, nil
}

func shortID(sessionID string) string {
	if len(sessionID) > 16 {
		return sessionID[:16]
	}
	return sessionID
}

func truncate(s string, limit int) string {
	if limit <= 3 || len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

func formatPercent(percent float64) string {
	return fmt.Sprintf("%.0f%%", percent)
}

func formatLocalTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func statusLabel(record *records.Record) string {
	label := string(record.Status)
	if record.Status == records.StatusFailed && record.ErrorCause != "" {
		label = fmt.Sprintf("%s (%s)", label, record.ErrorCause)
	}
	return label
}
