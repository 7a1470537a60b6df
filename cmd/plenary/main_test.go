package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"plenary/internal/identity"
	"plenary/internal/records"
)

func TestRootRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	want := []string{
		"process", "batch", "list", "show", "status",
		"retry", "remove", "discover", "export", "config",
	}
	registered := make(map[string]bool)
	for _, cmd := range root.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Fatalf("subcommand %q is not registered", name)
		}
	}
}

func TestListEmptyStore(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env.configPath, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "no records")
}

func TestListAndShowSeededRecords(t *testing.T) {
	env := setupCLITestEnv(t)
	seedCompletedRecord(t, env, "https://webtv.example.org/en/asset?entry=k1", "Security Council 9001st meeting")

	out, err := runCLI(t, env.configPath, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Security Council 9001st meeting")
	requireContains(t, out, "completed")

	sessionID, err := identity.Resolve("https://webtv.example.org/en/asset?entry=k1")
	if err != nil {
		t.Fatalf("resolve session id: %v", err)
	}

	out, err = runCLI(t, env.configPath, "show", sessionID)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Security Council 9001st meeting")
	requireContains(t, out, sessionID)

	// The URL form addresses the same record.
	out, err = runCLI(t, env.configPath, "show", "HTTPS://WEBTV.example.org:443/en/asset?entry=k1", "--json")
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	var decoded records.Record
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode show --json output: %v", err)
	}
	if decoded.SessionID != sessionID {
		t.Fatalf("expected session %s, got %s", sessionID, decoded.SessionID)
	}
}

func TestExportWritesWorkbook(t *testing.T) {
	env := setupCLITestEnv(t)
	seedCompletedRecord(t, env, "https://webtv.example.org/en/asset?entry=k2", "General Assembly plenary")

	target := filepath.Join(env.baseDir, "catalog.xlsx")
	out, err := runCLI(t, env.configPath, "export", "--out", target)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, out, target)
}

func TestRemoveDeletesRecord(t *testing.T) {
	env := setupCLITestEnv(t)
	sessionID := seedCompletedRecord(t, env, "https://webtv.example.org/en/asset?entry=k3", "Human Rights Council")

	out, err := runCLI(t, env.configPath, "remove", sessionID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	requireContains(t, out, "removed")

	out, err = runCLI(t, env.configPath, "list")
	if err != nil {
		t.Fatalf("list after remove: %v", err)
	}
	requireContains(t, out, "no records")
}

func seedCompletedRecord(t *testing.T, env *cliTestEnv, sourceURL, title string) string {
	t.Helper()

	store, err := records.Open(context.Background(), env.cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	sessionID, err := identity.Resolve(sourceURL)
	if err != nil {
		t.Fatalf("resolve session id: %v", err)
	}
	record, _, err := store.Claim(context.Background(), sessionID, sourceURL)
	if err != nil {
		t.Fatalf("claim record: %v", err)
	}
	record.Title = title
	record.Language = "en"
	if err := store.Complete(context.Background(), record); err != nil {
		t.Fatalf("complete record: %v", err)
	}
	return sessionID
}
