package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jupyter-rtc/collab-mcp/internal/config"
	"github.com/jupyter-rtc/collab-mcp/internal/event"
	"github.com/jupyter-rtc/collab-mcp/internal/eventlog"
	"github.com/jupyter-rtc/collab-mcp/internal/logging"
	"github.com/jupyter-rtc/collab-mcp/internal/rtc"
	"github.com/jupyter-rtc/collab-mcp/internal/server"
	"github.com/jupyter-rtc/collab-mcp/internal/session"
	"github.com/jupyter-rtc/collab-mcp/internal/tools"
)

var (
	servePort     int
	serveHostname string
	serveDir      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the collaboration MCP server",
	Long: `Start the MCP server exposing notebook and document collaboration
tools over HTTP, with resumable SSE streaming per session.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "", "Hostname to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	// .env values feed config interpolation and COLLAB_MCP_* overrides.
	_ = godotenv.Load()

	workDir := serveDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveHostname != "" {
		cfg.Host = serveHostname
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	logging.Info().
		Str("version", Version).
		Str("directory", workDir).
		Msg("starting collab-mcp server")

	bus := event.NewBus()
	defer bus.Close()

	events := eventlog.New(eventlog.Options{
		MaxEventsPerStream: cfg.MaxEventsPerStream,
		MaxStreams:         cfg.MaxStreams,
	})
	sessions := session.NewRegistry()

	adapter := rtc.NewAdapter(rtc.NewMemoryEngine(bus), bus)
	toolReg := tools.NewRegistry()
	tools.RegisterAll(toolReg, adapter)

	serverConfig := server.DefaultConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	serverConfig.Token = cfg.Token
	serverConfig.HeartbeatInterval = cfg.HeartbeatInterval()

	srv := server.New(serverConfig, sessions, events, toolReg, bus)

	// Idle event streams are swept on a fixed cadence.
	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	go func() {
		ticker := time.NewTicker(cfg.PruneInterval())
		defer ticker.Stop()
		for {
			select {
			case <-pruneCtx.Done():
				return
			case <-ticker.C:
				if n := events.PruneIdle(cfg.IdleStreamMaxAge()); n > 0 {
					logging.Debug().Int("streams", n).Msg("pruned idle event streams")
				}
			}
		}
	}()

	go func() {
		logging.Info().
			Str("host", cfg.Host).
			Int("port", cfg.Port).
			Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
	return nil
}
