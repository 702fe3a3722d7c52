package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// inTempDir runs the test from an empty directory so no stray config.yaml is read.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	inTempDir(t)
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); !errors.Is(err, ErrMissingJWTSecret) {
		t.Errorf("Load() without secret = %v, want ErrMissingJWTSecret", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if !cfg.Gamification.ReclaimVotePoints {
		t.Error("ReclaimVotePoints = false, want true by default")
	}
	if cfg.Gamification.LeaderboardDefaultLimit != 20 {
		t.Errorf("LeaderboardDefaultLimit = %d, want 20", cfg.Gamification.LeaderboardDefaultLimit)
	}
	if !slices.Equal(cfg.Server.CORSOrigins, []string{"*"}) {
		t.Errorf("CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	inTempDir(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("GAMIFICATION_RECLAIM_VOTE_POINTS", "false")
	t.Setenv("LEADERBOARD_DEFAULT_LIMIT", "50")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Database.Host != "db.internal" {
		t.Errorf("Port/Host = %q/%q, want 9090/db.internal", cfg.Server.Port, cfg.Database.Host)
	}
	if cfg.Gamification.ReclaimVotePoints {
		t.Error("ReclaimVotePoints = true, want false from env")
	}
	if cfg.Gamification.LeaderboardDefaultLimit != 50 {
		t.Errorf("LeaderboardDefaultLimit = %d, want 50", cfg.Gamification.LeaderboardDefaultLimit)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !slices.Equal(cfg.Server.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := inTempDir(t)
	t.Setenv("JWT_SECRET", "")
	yaml := "auth:\n  jwt_secret: from-file\ndatabase:\n  name: forum_test\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-file" || cfg.Database.Name != "forum_test" {
		t.Errorf("file values = %q/%q, want from-file/forum_test", cfg.Auth.JWTSecret, cfg.Database.Name)
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	want := "host=h port=5432 user=u password=p dbname=n sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
