package seed

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/followgraph/internal/platform/auth"
	"github.com/louisbranch/followgraph/internal/services/social/storage/sqlite"
)

func TestParseConfigRequiresFile(t *testing.T) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected error without -file")
	}
}

func TestParseConfigTokensRequireSecret(t *testing.T) {
	t.Setenv("FOLLOWGRAPH_JWT_SECRET", "")
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	if _, err := ParseConfig(fs, []string{"-file", "users.json", "-tokens", "1h"}); err == nil {
		t.Fatal("expected error for tokens without secret")
	}
}

func TestParseConfigFlags(t *testing.T) {
	t.Setenv("FOLLOWGRAPH_DB_PATH", "env.db")
	t.Setenv("FOLLOWGRAPH_JWT_SECRET", "secret")
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-file", "users.json", "-tokens", "2h"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "env.db" || cfg.File != "users.json" || cfg.TokenTTL != 2*time.Hour {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestLoadFixtureCanonicalizesUsernames(t *testing.T) {
	fixture, err := LoadFixture(strings.NewReader(`{"users":[
		{"username":"Alice","fullName":"Alice","email":"alice@example.com","follows":["ＢＯＢ"]},
		{"username":"bob","fullName":"Bob","email":"bob@example.com"}
	]}`))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	if fixture.Users[0].Username != "alice" {
		t.Fatalf("username = %q, want alice", fixture.Users[0].Username)
	}
	if fixture.Users[0].Follows[0] != "bob" {
		t.Fatalf("follow = %q, want bob", fixture.Users[0].Follows[0])
	}
}

func TestLoadFixtureRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty users", body: `{"users":[]}`},
		{name: "unknown field", body: `{"users":[{"username":"alice","fullName":"A","email":"a@example.com","age":3}]}`},
		{name: "bad email", body: `{"users":[{"username":"alice","fullName":"A","email":"nope"}]}`},
		{name: "bad username", body: `{"users":[{"username":"a!","fullName":"A","email":"a@example.com"}]}`},
		{name: "bad profile pic", body: `{"users":[{"username":"alice","fullName":"A","email":"a@example.com","profilePic":"not a url"}]}`},
		{name: "duplicate username", body: `{"users":[
			{"username":"alice","fullName":"A","email":"a@example.com"},
			{"username":"ALICE","fullName":"B","email":"b@example.com"}]}`},
		{name: "unknown follow", body: `{"users":[{"username":"alice","fullName":"A","email":"a@example.com","follows":["ghost"]}]}`},
		{name: "self follow", body: `{"users":[{"username":"alice","fullName":"A","email":"a@example.com","follows":["alice"]}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadFixture(strings.NewReader(tc.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunSeedsUsersAndFollows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "followgraph.db")
	cfg := Config{
		DBPath:    dbPath,
		JWTSecret: "secret",
		File:      filepath.Join("testdata", "users.json"),
		TokenTTL:  time.Hour,
	}

	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("output lines = %d, want 3:\n%s", len(lines), out.String())
	}

	verifier, err := auth.NewVerifier("secret", nil)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token := lines[0][strings.Index(lines[0], "token=")+len("token="):]
	userID, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify printed token: %v", err)
	}
	if !strings.Contains(lines[0], "seeded alice id="+userID) {
		t.Fatalf("first line = %q", lines[0])
	}

	// A second run reuses ids and tolerates existing follows.
	if err := Run(context.Background(), Config{DBPath: dbPath, File: cfg.File}, &out); err != nil {
		t.Fatalf("rerun: %v", err)
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("users = %d, want 3", len(users))
	}
	ids := map[string]string{}
	for _, user := range users {
		ids[user.Username] = user.ID
	}
	if ids["alice"] != userID {
		t.Fatalf("alice id = %q, want %q", ids["alice"], userID)
	}

	counts, err := store.CountFollows(context.Background(), ids["alice"])
	if err != nil {
		t.Fatalf("count follows: %v", err)
	}
	if counts.Following != 2 || counts.Followers != 1 {
		t.Fatalf("alice counts = %+v, want following 2 followers 1", counts)
	}
	mutual, err := store.IsFollowing(context.Background(), ids["bob"], ids["alice"])
	if err != nil || !mutual {
		t.Fatalf("bob follows alice = %v err %v", mutual, err)
	}
}

func TestRunMissingFile(t *testing.T) {
	cfg := Config{DBPath: filepath.Join(t.TempDir(), "followgraph.db"), File: "testdata/missing.json"}
	if err := Run(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for missing fixture")
	}
}
