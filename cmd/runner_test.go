package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/djx/internal/selector"
	"github.com/desertthunder/djx/internal/shared"
	mocks "github.com/desertthunder/djx/internal/testing"
	"github.com/urfave/cli/v3"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			client := selector.NewClient("http://localhost:5000", httpClient, 0, logger)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Selector:   client,
			})

			if runner.config != config {
				t.Error("expected config to be set")
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
			if runner.selector != client {
				t.Error("expected selector to be set")
			}
			if runner.bridge == nil {
				t.Error("expected default bridge to be built")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writeJSON(map[string]string{"status": "ok"}, false); err != nil {
			t.Fatalf("writeJSON() error = %v", err)
		}

		var decoded map[string]string
		if err := json.Unmarshal(output.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded["status"] != "ok" {
			t.Errorf("decoded = %v", decoded)
		}
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlain("weight: %.2f\n", 1.25); err != nil {
			t.Fatalf("writePlain() error = %v", err)
		}
		if output.String() != "weight: 1.25\n" {
			t.Errorf("output = %q", output.String())
		}
	})

	t.Run("writeJSON with failing writer", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &mocks.FWriter{}})
		if err := runner.writeJSON(map[string]string{"status": "ok"}, false); err == nil {
			t.Error("expected error from failing writer")
		}
	})

	t.Run("writePlain with failing writer", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &mocks.FWriter{}})
		if err := runner.writePlain("weight: %.2f\n", 1.25); err == nil {
			t.Error("expected error from failing writer")
		}
	})
}

func TestParseToggle(t *testing.T) {
	tc := []struct {
		input   string
		want    bool
		wantErr bool
	}{
		{input: "on", want: true},
		{input: "ON", want: true},
		{input: "off", want: false},
		{input: "0", want: false},
		{input: "maybe", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseToggle(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseToggle() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseToggle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetupInitializesDatabase(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	dbPath := filepath.Join(dir, "djx.db")

	content := "[database]\npath = \"" + dbPath + "\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: output})

	app := &cli.Command{Commands: runner.register()}
	if err := app.Run(context.Background(), []string{"djx", "setup", "--config", configPath}); err != nil {
		t.Fatalf("setup error = %v", err)
	}

	mocks.AssertFileExists(t, dbPath)
	if !strings.Contains(output.String(), "Setup complete") {
		t.Errorf("output = %q", output.String())
	}
}

func TestSetupScaffoldsConfig(t *testing.T) {
	dir := t.TempDir()
	// The scaffolded template uses a relative database path.
	t.Chdir(dir)
	configPath := filepath.Join(dir, "config.toml")

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: output})

	app := &cli.Command{Commands: runner.register()}
	if err := app.Run(context.Background(), []string{"djx", "setup", "--config", configPath}); err != nil {
		t.Fatalf("setup error = %v", err)
	}

	mocks.AssertFileExists(t, configPath)
	content := mocks.MustReadFile(t, configPath)
	for _, section := range []string{"[selector]", "[provider]", "[database]", "[dj]"} {
		if !strings.Contains(content, section) {
			t.Errorf("scaffolded config missing %s", section)
		}
	}
}

func TestDjStatusRendersSelectorAndLocalFlags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dj/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(selector.StatusResponse{
			Enabled: true,
			Stats:   map[string]any{"picks_today": float64(3)},
		})
	}))
	defer server.Close()

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Selector.BaseURL = server.URL
	config.Database.Path = filepath.Join(dir, "djx.db")

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:     config,
		Output:     output,
		HTTPClient: server.Client(),
	})

	app := &cli.Command{Commands: runner.register()}
	if err := app.Run(context.Background(), []string{"djx", "dj", "status"}); err != nil {
		t.Fatalf("dj status error = %v", err)
	}

	got := output.String()
	for _, want := range []string{"Selector enabled", "picks_today", "auto-pick", "pause-on-AFK"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestDjAutoPersists(t *testing.T) {
	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "djx.db")

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Config: config, Output: output})

	app := &cli.Command{Commands: runner.register()}
	if err := app.Run(context.Background(), []string{"djx", "dj", "auto", "off"}); err != nil {
		t.Fatalf("dj auto error = %v", err)
	}

	prefs, err := runner.localPrefs()
	if err != nil {
		t.Fatalf("localPrefs() error = %v", err)
	}
	if prefs.AutoPickEnabled {
		t.Error("expected auto-pick persisted as off")
	}
}
