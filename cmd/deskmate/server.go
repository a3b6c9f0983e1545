package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/deskmate/internal/api"
	"github.com/kalambet/deskmate/internal/chat"
	"github.com/kalambet/deskmate/internal/composer"
	"github.com/kalambet/deskmate/internal/config"
	"github.com/kalambet/deskmate/internal/faq"
	"github.com/kalambet/deskmate/internal/gate"
	"github.com/kalambet/deskmate/internal/generator"
	"github.com/kalambet/deskmate/internal/ingest"
	"github.com/kalambet/deskmate/internal/llm"
	"github.com/kalambet/deskmate/internal/ollama"
	"github.com/kalambet/deskmate/internal/proxy"
	"github.com/kalambet/deskmate/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the deskmate server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running deskmate server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show deskmate system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "deskmate.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

// checkBackend verifies the configured provider can serve the configured
// model before the server starts accepting messages.
func checkBackend(ctx context.Context, cfg config.Config) error {
	switch cfg.LLM.Provider {
	case llm.ProviderOpenRouter:
		ok, err := proxy.NewClient(cfg.LLM.OpenRouterAPIKey).HasModel(ctx, cfg.Proxy.DefaultModel)
		if err != nil {
			printWarning("could not verify OpenRouter model %s: %v", cfg.Proxy.DefaultModel, err)
			return nil
		}
		if !ok {
			return fmt.Errorf("OpenRouter does not offer model %q; set proxy.default_model", cfg.Proxy.DefaultModel)
		}
		return nil
	default:
		return ollama.EnsureReady(ctx, ollama.New(cfg.Ollama.BaseURL), cfg.Ollama.Model, os.Stderr)
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "deskmate version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	apiToken, err := config.GetAPIToken(config.NewSecretStore())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("deskmate is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("deskmate is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := checkBackend(ctx, cfg); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	backend, err := llm.New(llm.Options{
		Provider:         cfg.LLM.Provider,
		OllamaBaseURL:    cfg.Ollama.BaseURL,
		OllamaModel:      cfg.Ollama.Model,
		OpenRouterAPIKey: cfg.LLM.OpenRouterAPIKey,
		OpenRouterModel:  cfg.Proxy.DefaultModel,
	})
	if err != nil {
		return fmt.Errorf("building generative backend: %w", err)
	}

	availability := gate.New(store)
	orch := chat.New(
		availability,
		store,
		store,
		composer.New(cfg.Assistant.PromptTurns),
		generator.New(backend, cfg.Assistant.Timeout()),
		store,
		chat.Options{
			Persona:         cfg.Assistant.Persona,
			HistoryLimit:    cfg.Assistant.HistoryLimit,
			MaxMessageChars: cfg.Assistant.MaxMessageChars,
			LearningEnabled: cfg.Assistant.Learning.Enabled,
			LearnEveryN:     cfg.Assistant.Learning.EveryN,
		},
	)
	loader := faq.NewDocumentLoader(cfg.FAQ.DocumentsDir, cfg.FAQ.InboxDir)
	extractor := faq.NewExtractor(backend, loader, cfg.FAQ.MaxDocumentChars)
	extractor.SetTimeout(cfg.FAQ.Timeout())
	learner := faq.NewLearner(backend)
	learner.SetTimeout(cfg.FAQ.Timeout())

	handler := api.NewAppHandler(api.AppDeps{
		Chat:          orch,
		Gate:          availability,
		Store:         store,
		Extractor:     extractor,
		Learner:       learner,
		Token:         apiToken,
		RatePerMinute: cfg.Assistant.RatePerMinute,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "deskmate listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	worker := ingest.NewWorker(store, extractor, learner, 500*time.Millisecond)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	if cfg.FAQ.InboxDir != "" {
		watcher := ingest.NewInboxWatcher(cfg.FAQ.InboxDir, store, faq.SupportedExtensions())
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil {
				slog.Error("inbox watcher stopped", "dir", cfg.FAQ.InboxDir, "error", err)
			}
			return nil
		})
		slog.Info("watching FAQ inbox", "dir", cfg.FAQ.InboxDir)
	}

	if cfg.Server.MCPEnabled {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Chat:  orch,
			Gate:  availability,
			Store: store,
		}, version)
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("deskmate is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop deskmate (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to deskmate (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	httpClient := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := httpClient.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var health struct {
			SchemaVersion int `json:"schema_version"`
		}
		json.NewDecoder(resp.Body).Decode(&health)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
			if health.SchemaVersion > 0 {
				printStatus("Schema", "v%d", health.SchemaVersion)
			}
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Provider", "%s", cfg.LLM.Provider)
	if cfg.LLM.Provider == llm.ProviderOpenRouter {
		printStatus("Model", "%s", cfg.Proxy.DefaultModel)
	} else {
		if ollama.New(cfg.Ollama.BaseURL).IsRunning(ctx) {
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		} else {
			printStatus("Ollama", "not running")
		}
		printStatus("Model", "%s", cfg.Ollama.Model)
	}

	if running {
		if client, err := newAPIClient(); err == nil {
			var flag struct {
				Enabled bool `json:"enabled"`
			}
			if resp, err := client.get(ctx, "/settings/ai"); err == nil && decodeJSON(resp, &flag) == nil {
				printStatus("Assistant", "%s", enabledLabel(flag.Enabled))
			}
			var entries []struct{}
			if resp, err := client.get(ctx, "/faq"); err == nil && decodeJSON(resp, &entries) == nil {
				printStatus("FAQ entries", "%d", len(entries))
			}
		}
	}

	printStatus("Learning", "%s", enabledLabel(cfg.Assistant.Learning.Enabled))
	if cfg.FAQ.InboxDir != "" {
		printStatus("FAQ inbox", "%s", cfg.FAQ.InboxDir)
	}
	if cfg.FAQ.DocumentsDir != "" {
		printStatus("FAQ documents", "%s", cfg.FAQ.DocumentsDir)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
