// Package seed loads a JSON fixture of users and follows into the store.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/louisbranch/followgraph/internal/platform/auth"
	entrypoint "github.com/louisbranch/followgraph/internal/platform/cmd"
	"github.com/louisbranch/followgraph/internal/platform/id"
	"github.com/louisbranch/followgraph/internal/services/social/storage"
	"github.com/louisbranch/followgraph/internal/services/social/storage/sqlite"
	"github.com/louisbranch/followgraph/internal/services/social/username"
)

// Config holds seed command configuration.
type Config struct {
	DBPath    string `env:"FOLLOWGRAPH_DB_PATH" envDefault:"data/followgraph.db"`
	JWTSecret string `env:"FOLLOWGRAPH_JWT_SECRET"`
	File      string
	// TokenTTL, when positive, prints a session token for every seeded user.
	TokenTTL time.Duration
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.File, "file", "", "JSON fixture with users and follows")
	fs.DurationVar(&cfg.TokenTTL, "tokens", 0, "print a session token valid for this long per user (0 disables)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.File) == "" {
		return Config{}, errors.New("-file is required")
	}
	if cfg.TokenTTL > 0 && strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, errors.New("FOLLOWGRAPH_JWT_SECRET is required to print tokens")
	}
	return cfg, nil
}

// Fixture is the seed file layout.
type Fixture struct {
	Users []FixtureUser `json:"users" validate:"required,min=1,dive"`
}

// FixtureUser is one user and the usernames it follows.
type FixtureUser struct {
	Username   string   `json:"username"   validate:"required,username"`
	FullName   string   `json:"fullName"   validate:"required,max=100"`
	Email      string   `json:"email"      validate:"required,email"`
	ProfilePic string   `json:"profilePic" validate:"omitempty,url"`
	Follows    []string `json:"follows"    validate:"dive,required"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		_, err := username.Canonicalize(fl.Field().String())
		return err == nil
	})
	return v
}

// LoadFixture decodes and validates a seed file.
func LoadFixture(r io.Reader) (Fixture, error) {
	var fixture Fixture
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fixture); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	if err := newValidator().Struct(fixture); err != nil {
		return Fixture{}, fmt.Errorf("validate fixture: %w", err)
	}

	seen := make(map[string]bool, len(fixture.Users))
	for i := range fixture.Users {
		canonical, err := username.Canonicalize(fixture.Users[i].Username)
		if err != nil {
			return Fixture{}, fmt.Errorf("user %d: %w", i, err)
		}
		if seen[canonical] {
			return Fixture{}, fmt.Errorf("duplicate username %q", canonical)
		}
		seen[canonical] = true
		fixture.Users[i].Username = canonical
	}
	for _, user := range fixture.Users {
		for j, followed := range user.Follows {
			canonical, err := username.Canonicalize(followed)
			if err != nil || !seen[canonical] {
				return Fixture{}, fmt.Errorf("user %q follows unknown username %q", user.Username, followed)
			}
			if canonical == user.Username {
				return Fixture{}, fmt.Errorf("user %q cannot follow itself", user.Username)
			}
			user.Follows[j] = canonical
		}
	}
	return fixture, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(ctx context.Context) error {
		return run(ctx, cfg, out)
	})
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	file, err := os.Open(cfg.File)
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	fixture, err := LoadFixture(file)
	_ = file.Close()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ids, err := Apply(ctx, store, fixture, time.Now().UTC())
	if err != nil {
		return err
	}

	var verifier *auth.Verifier
	if cfg.TokenTTL > 0 {
		verifier, err = auth.NewVerifier(cfg.JWTSecret, nil)
		if err != nil {
			return err
		}
	}
	for _, user := range fixture.Users {
		userID := ids[user.Username]
		if verifier == nil {
			fmt.Fprintf(out, "seeded %s id=%s\n", user.Username, userID)
			continue
		}
		token, err := verifier.Sign(userID, cfg.TokenTTL)
		if err != nil {
			return fmt.Errorf("sign token for %s: %w", user.Username, err)
		}
		fmt.Fprintf(out, "seeded %s id=%s token=%s\n", user.Username, userID, token)
	}
	return nil
}

// Apply writes fixture users and follows, reusing ids of users already
// present by username. It returns the id of every fixture user.
func Apply(ctx context.Context, store storage.Store, fixture Fixture, now time.Time) (map[string]string, error) {
	existing, err := store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	byUsername := make(map[string]storage.User, len(existing))
	for _, user := range existing {
		byUsername[user.Username] = user
	}

	ids := make(map[string]string, len(fixture.Users))
	for _, fu := range fixture.Users {
		user, ok := byUsername[fu.Username]
		if !ok {
			userID, err := id.NewID()
			if err != nil {
				return nil, fmt.Errorf("generate id: %w", err)
			}
			user = storage.User{ID: userID, Username: fu.Username, CreatedAt: now}
		}
		user.FullName = fu.FullName
		user.Email = strings.TrimSpace(fu.Email)
		user.ProfilePic = fu.ProfilePic
		user.UpdatedAt = now
		if err := store.PutUser(ctx, user); err != nil {
			return nil, fmt.Errorf("put user %s: %w", fu.Username, err)
		}
		ids[fu.Username] = user.ID
	}

	for _, fu := range fixture.Users {
		for _, followed := range fu.Follows {
			err := store.PutFollow(ctx, storage.Follow{
				FollowerID: ids[fu.Username],
				FollowedID: ids[followed],
				CreatedAt:  now,
			})
			if err != nil && !errors.Is(err, storage.ErrAlreadyFollowing) {
				return nil, fmt.Errorf("follow %s -> %s: %w", fu.Username, followed, err)
			}
		}
	}
	return ids, nil
}
