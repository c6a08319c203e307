// ABOUTME: Entry point for the guestdesk personal-site backend
// ABOUTME: Subcommands serve, init, health and stats

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/guestdesk/internal/assets"
	"github.com/2389/guestdesk/internal/config"
	"github.com/2389/guestdesk/internal/server"
	"github.com/2389/guestdesk/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                        _      _           _
  __ _ _   _  ___  ___| |_ __| | ___  ___| | __
 / _' | | | |/ _ \/ __| __/ _' |/ _ \/ __| |/ /
| (_| | |_| |  __/\__ \ || (_| |  __/\__ \   <
 \__, |\__,_|\___||___/\__\__,_|\___||___/_|\_\
 |___/
`

// getConfigPath returns the path to the config file.
// Priority: GUESTDESK_CONFIG env var > XDG_CONFIG_HOME/guestdesk/config.yaml > ~/.config/guestdesk/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("GUESTDESK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "guestdesk", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: guestdesk <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve           Start the HTTP server")
		fmt.Println("  init [--force]  Write an example config file")
		fmt.Println("  health          Check server health")
		fmt.Println("  stats           Show visitor, shout and guestbook counts")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Args[2:], getConfigPath(), os.Stdout)
	case "health":
		err = runHealth(ctx, os.Stdout)
	case "stats":
		err = runStats(ctx, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Storage:   %s (%s)\n", cfg.Storage.Path, cfg.Storage.Backend)
	if !cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Server.StaticDir != "" {
		green.Print("    ▶ ")
		fmt.Printf("Static:    %s\n", cfg.Server.StaticDir)
	}
	if !cfg.RateLimit.IsEnabled() {
		yellow.Print("    ▶ ")
		fmt.Println("Rate limit disabled")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	if cfg.Notify.Matrix.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Notify:    matrix %s\n", cfg.Notify.Matrix.RoomID)
	}

	fmt.Println()

	logger.Info("starting guestdesk",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backend", cfg.Storage.Backend,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

// runInit writes the embedded example config to configPath.
func runInit(args []string, configPath string, out io.Writer) error {
	force := false
	for _, arg := range args {
		switch arg {
		case "--force", "-f":
			force = true
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, assets.ExampleConfig, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintf(out, "Config written to %s\n", configPath)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  guestdesk serve")
	return nil
}

// baseURL returns the local HTTP address of the configured server.
func baseURL(cfg *config.Config) string {
	if cfg.Tailscale.Enabled {
		scheme := "http"
		if cfg.Tailscale.HTTPS || cfg.Tailscale.Funnel {
			scheme = "https"
		}
		return scheme + "://" + cfg.Tailscale.Hostname
	}
	return "http://" + cfg.Server.HTTPAddr
}

// getJSON fetches url and decodes the JSON body into v.
func getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

func runHealth(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return checkHealth(ctx, baseURL(cfg), out)
}

// checkHealth probes the liveness and readiness endpoints.
func checkHealth(ctx context.Context, base string, out io.Writer) error {
	for _, path := range []string{"/health", "/health/ready"} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unhealthy: %s status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
		}
	}

	fmt.Fprintln(out, "healthy")
	return nil
}

func runStats(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return printStats(ctx, baseURL(cfg), out)
}

// printStats reports the collection sizes from a running server.
func printStats(ctx context.Context, base string, out io.Writer) error {
	var visitors server.VisitorCountResponse
	var shouts []store.ShoutMessage
	var entries []store.GuestbookEntry

	errs := []error{
		getJSON(ctx, base+"/api/visitors", &visitors),
		getJSON(ctx, base+"/api/shoutbox", &shouts),
		getJSON(ctx, base+"/api/guestbook", &entries),
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	fmt.Fprintf(out, "Visitors:   %d\n", visitors.Count)
	fmt.Fprintf(out, "Shouts:     %d / %d\n", len(shouts), store.MaxShouts)
	fmt.Fprintf(out, "Guestbook:  %d / %d\n", len(entries), store.MaxGuestbook)
	if len(entries) > 0 {
		fmt.Fprintf(out, "Latest:     %s (%s)\n", entries[0].Name, entries[0].Time)
	}
	return nil
}
