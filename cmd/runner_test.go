package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/playback"
	"github.com/desertthunder/hivefm/internal/repositories"
	"github.com/desertthunder/hivefm/internal/session"
	"github.com/desertthunder/hivefm/internal/shared"
	tu "github.com/desertthunder/hivefm/internal/testing"
)

type fakeMusic struct {
	*httptest.Server
	mu       sync.Mutex
	queue    models.Queue
	reorders []map[string]any

	// pauseStatus makes the Web API pause endpoint fail with that status when set.
	pauseStatus int
	pauses      []string
}

func newFakeMusic(t *testing.T) *fakeMusic {
	t.Helper()
	tracks := tu.SampleTracks(2)
	f := &fakeMusic{queue: models.Queue{
		{Track: tracks[0], QueueID: "q1", Position: 0, Votes: 2},
		{Track: tracks[1], QueueID: "q2", Position: 1},
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /queue", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		body := map[string]any{"items": f.queue}
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("PUT /queue/reorder", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.reorders = append(f.reorders, body)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /spotify/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-2","expires_in":3600}`)
	})
	mux.HandleFunc("GET /me/player/devices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"devices":[{"id":"dev1","is_active":true,"name":"hivefm","type":"Computer","volume_percent":50}]}`)
	})
	mux.HandleFunc("GET /me/player", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"device":{"id":"dev1","name":"hivefm","volume_percent":50},"progress_ms":0,"is_playing":true}`)
	})
	mux.HandleFunc("PUT /me/player", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("PUT /me/player/pause", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.pauses = append(f.pauses, r.Header.Get("Authorization"))
		status := f.pauseStatus
		f.mu.Unlock()
		if status == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":{"status":403,"message":"Player command failed: Restriction violated"}}`)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeMusic) Pauses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pauses...)
}

func (f *fakeMusic) Reorders() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.reorders...)
}

func testConfig(t *testing.T, srv *fakeMusic) *shared.Config {
	t.Helper()
	cfg := shared.DefaultConfig()
	cfg.Music.APIURL = srv.URL
	cfg.Music.WSURL = ""
	cfg.Music.HiveID = ""
	cfg.Credentials.Spotify.APIURL = srv.URL
	cfg.Credentials.Spotify.ClientID = "client"
	cfg.Database = shared.DatabaseConfig{Path: filepath.Join(t.TempDir(), "hivefm.db"), MaxOpenConns: 1}
	return cfg
}

func seedAuth(t *testing.T, cfg *shared.Config, product string) {
	t.Helper()
	seedAuthExpiring(t, cfg, product, time.Now().Add(time.Hour))
}

func seedAuthExpiring(t *testing.T, cfg *shared.Config, product string, expiresAt time.Time) {
	t.Helper()
	ctx := context.Background()
	db, err := shared.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	record := models.PersistedAuth{
		Token:        "tok-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    expiresAt.UnixMilli(),
		User:         &models.Profile{ID: "u1", DisplayName: "Robin", Product: product},
	}
	if err := repositories.NewCredentialRepository(db).SaveAuth(ctx, record); err != nil {
		t.Fatalf("failed to seed credentials: %v", err)
	}
}

func runApp(t *testing.T, cfg *shared.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	r := NewRunner(RunnerOpts{
		Config:  cfg,
		Output:  &out,
		Logger:  shared.NewLogger(io.Discard),
		OpenURL: func(string) error { return errors.New("no browser in tests") },
	})
	err := newApp(r).Run(context.Background(), append([]string{"hive"}, args...))
	return out.String(), err
}

// runWithSession runs the app and returns the session the command used.
func runWithSession(t *testing.T, cfg *shared.Config, client *http.Client, args ...string) (*session.Session, error) {
	t.Helper()
	var used *session.Session
	r := NewRunner(RunnerOpts{
		Config:  cfg,
		Output:  io.Discard,
		Logger:  shared.NewLogger(io.Discard),
		OpenURL: func(string) error { return errors.New("no browser in tests") },
		NewSession: func(ctx context.Context, cfg *shared.Config, logger *log.Logger) (*session.Session, error) {
			s, err := session.New(ctx, session.Options{Config: cfg, HTTPClient: client, Logger: logger})
			used = s
			return s, err
		},
	})
	err := newApp(r).Run(context.Background(), append([]string{"hive"}, args...))
	if used == nil {
		t.Fatal("expected the command to open a session")
	}
	return used, err
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if !runner.configLoaded {
				t.Error("expected a provided config to count as loaded")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.configLoaded {
				t.Error("expected config file to be read on first command")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.newSession == nil || runner.openURL == nil {
				t.Error("expected session factory and browser opener defaults")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		runner.writePlain("%d tracks\n", 3)
		runner.writePlainln("done")
		if got := output.String(); got != "3 tracks\n\ndone\n" {
			t.Errorf("unexpected output %q", got)
		}

		failing := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := failing.writePlain("x"); err == nil {
			t.Error("expected error from failing writer")
		}
	})
}

func TestQueueCommands(t *testing.T) {
	t.Run("List As Csv", func(t *testing.T) {
		srv := newFakeMusic(t)
		out, err := runApp(t, testConfig(t, srv), "queue", "list", "--format", "csv")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %q", out)
		}
		if !strings.HasPrefix(lines[0], "Position,QueueID,Title") {
			t.Errorf("unexpected header %q", lines[0])
		}
		if !strings.HasPrefix(lines[1], "1,q1,Song a") {
			t.Errorf("unexpected first row %q", lines[1])
		}
	})

	t.Run("List To File", func(t *testing.T) {
		srv := newFakeMusic(t)
		path := filepath.Join(t.TempDir(), "queue.md")
		out, err := runApp(t, testConfig(t, srv), "queue", "list", "--format", "md", "--output", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Wrote 2 tracks") {
			t.Errorf("expected confirmation, got %q", out)
		}
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "| 1 | Song a |") {
			t.Errorf("expected markdown table, got %q", content)
		}
	})

	t.Run("List Rejects Unknown Format", func(t *testing.T) {
		srv := newFakeMusic(t)
		_, err := runApp(t, testConfig(t, srv), "queue", "list", "--format", "xml")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Add Requires A Track", func(t *testing.T) {
		srv := newFakeMusic(t)
		_, err := runApp(t, testConfig(t, srv), "queue", "add")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Add Without Login", func(t *testing.T) {
		srv := newFakeMusic(t)
		_, err := runApp(t, testConfig(t, srv), "queue", "add", "--track-id", "abc")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Vote Direction", func(t *testing.T) {
		srv := newFakeMusic(t)
		_, err := runApp(t, testConfig(t, srv), "queue", "vote", "q1", "sideways")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Reorder Uses Zero-based Positions On The Wire", func(t *testing.T) {
		srv := newFakeMusic(t)
		out, err := runApp(t, testConfig(t, srv), "queue", "reorder", "2", "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Moved 2 → 1") {
			t.Errorf("expected confirmation, got %q", out)
		}

		reorders := srv.Reorders()
		if len(reorders) != 1 {
			t.Fatalf("expected one reorder request, got %d", len(reorders))
		}
		if reorders[0]["fromPosition"] != float64(1) || reorders[0]["toPosition"] != float64(0) {
			t.Errorf("unexpected body %v", reorders[0])
		}
	})

	t.Run("Reorder Rejects Position Zero", func(t *testing.T) {
		srv := newFakeMusic(t)
		_, err := runApp(t, testConfig(t, srv), "queue", "reorder", "0", "1")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if len(srv.Reorders()) != 0 {
			t.Error("no request should be sent for an invalid position")
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("Status When Logged Out", func(t *testing.T) {
		srv := newFakeMusic(t)
		out, err := runApp(t, testConfig(t, srv), "auth", "status")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Not authenticated") {
			t.Errorf("expected logged out status, got %q", out)
		}
	})

	t.Run("Status And Token With Stored Credentials", func(t *testing.T) {
		srv := newFakeMusic(t)
		cfg := testConfig(t, srv)
		seedAuth(t, cfg, "premium")

		out, err := runApp(t, cfg, "auth", "status")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"✓ Authenticated", "Robin (u1)", "Spotify Connect"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in %q", want, out)
			}
		}

		out, err = runApp(t, cfg, "auth", "token")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(out) != "tok-1" {
			t.Errorf("expected stored token, got %q", out)
		}
	})

	t.Run("Logout Forgets Credentials", func(t *testing.T) {
		srv := newFakeMusic(t)
		cfg := testConfig(t, srv)
		seedAuth(t, cfg, "premium")

		if _, err := runApp(t, cfg, "auth", "logout"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := runApp(t, cfg, "auth", "token")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated after logout, got %v", err)
		}
	})
}

func TestPlayerCommands(t *testing.T) {
	t.Run("Requires Login", func(t *testing.T) {
		srv := newFakeMusic(t)
		_, err := runApp(t, testConfig(t, srv), "player", "pause")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Requires Premium", func(t *testing.T) {
		srv := newFakeMusic(t)
		cfg := testConfig(t, srv)
		seedAuth(t, cfg, "free")

		_, err := runApp(t, cfg, "player", "next")
		if !errors.Is(err, shared.ErrNoPlayableSource) {
			t.Errorf("expected ErrNoPlayableSource, got %v", err)
		}
	})

	t.Run("Recovers Expired Session", func(t *testing.T) {
		srv := newFakeMusic(t)
		cfg := testConfig(t, srv)
		seedAuthExpiring(t, cfg, "premium", time.Now().Add(-time.Minute))

		s, err := runWithSession(t, cfg, srv.Client(), "player", "pause")
		if err != nil {
			t.Fatalf("expected refresh to recover the session, got %v", err)
		}
		pauses := srv.Pauses()
		if len(pauses) != 1 || pauses[0] != "Bearer tok-2" {
			t.Errorf("expected one pause with the refreshed token, got %v", pauses)
		}
		if got := s.State().Source; got != playback.SourceRemote {
			t.Errorf("expected remote source, got %s", got)
		}
	})

	t.Run("Rejected Command Lands In Store", func(t *testing.T) {
		srv := newFakeMusic(t)
		srv.pauseStatus = http.StatusForbidden
		cfg := testConfig(t, srv)
		seedAuth(t, cfg, "premium")

		s, err := runWithSession(t, cfg, srv.Client(), "player", "pause")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if got := s.State().Error; !strings.Contains(got, "Restriction violated") {
			t.Errorf("expected the rejection in the store error, got %q", got)
		}
	})

	t.Run("Volume Range", func(t *testing.T) {
		srv := newFakeMusic(t)
		_, err := runApp(t, testConfig(t, srv), "player", "volume", "150")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestParseSeek(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		err  error
	}{
		{"90", 90, nil},
		{"90.5", 90.5, nil},
		{"1:30", 90, nil},
		{"1:02:03", 3723, nil},
		{" 0:05 ", 5, nil},
		{"", 0, shared.ErrMissingArgument},
		{"1:75", 0, shared.ErrInvalidArgument},
		{"-3", 0, shared.ErrInvalidArgument},
		{"1:2:3:4", 0, shared.ErrInvalidArgument},
		{"abc", 0, shared.ErrInvalidArgument},
	}

	for _, tt := range tests {
		got, err := parseSeek(tt.in)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("parseSeek(%q): expected %v, got %v", tt.in, tt.err, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseSeek(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestParseVote(t *testing.T) {
	if v, err := parseVote("UP"); err != nil || v != models.VoteUp {
		t.Errorf("expected up, got %q %v", v, err)
	}
	if v, err := parseVote("-"); err != nil || v != models.VoteDown {
		t.Errorf("expected down, got %q %v", v, err)
	}
	if _, err := parseVote(""); !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}

func TestHistoryCommand(t *testing.T) {
	srv := newFakeMusic(t)
	cfg := testConfig(t, srv)

	out, err := runApp(t, cfg, "history")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No history yet") {
		t.Errorf("expected empty history, got %q", out)
	}

	ctx := context.Background()
	db, err := shared.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	entry := &models.HistoryEntry{Track: tu.SampleTracks(1)[0], Source: "local", HiveID: "hive-1"}
	if err := repositories.NewHistoryRepository(db).Record(ctx, entry); err != nil {
		t.Fatalf("failed to record: %v", err)
	}
	db.Close()

	out, err = runApp(t, cfg, "history", "--hive", "hive-1", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var entries []models.HistoryEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", out, err)
	}
	if len(entries) != 1 || entries[0].Track.ID != "track-a" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestSetupCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	t.Setenv("HIVEFM_DATABASE_PATH", filepath.Join(dir, "hivefm.db"))

	var out bytes.Buffer
	r := NewRunner(RunnerOpts{Output: &out, Logger: shared.NewLogger(io.Discard)})
	if err := newApp(r).Run(context.Background(), []string{"hive", "--config", configPath, "setup"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("expected config file to be written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "hivefm.db")); err != nil {
		t.Errorf("expected database to be created: %v", err)
	}
	if !strings.Contains(out.String(), "Database ready") {
		t.Errorf("expected confirmation, got %q", out.String())
	}
}
