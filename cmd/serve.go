package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ingest"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the face attendance web server.

On startup the gallery is loaded, every image in the picture directory is
enrolled (label = file name without extension), and the verify and register
endpoints are served until interrupted. The gallery is saved on shutdown.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Float64("threshold", constants.DefaultMatchThreshold, "Match threshold (overrides MATCH_THRESHOLD)")
	serveCmd.Flags().String("picture-dir", "picture", "Directory enrolled on startup (overrides INGEST_DIR)")
	serveCmd.Flags().Bool("no-ingest", false, "Skip the startup picture directory ingest")
	serveCmd.Flags().Bool("skip-existing", false, "Do not re-enroll labels already in the gallery")
}

// resolveServeConfig applies explicitly set flags on top of the environment.
func resolveServeConfig(cmd *cobra.Command) *config.Config {
	cfg := loadConfig()
	overrideInt(cmd, "port", &cfg.Web.Port)
	overrideString(cmd, "host", &cfg.Web.Host)
	overrideFloat64(cmd, "threshold", &cfg.Recognition.MatchThreshold)
	overrideString(cmd, "picture-dir", &cfg.Ingest.Dir)
	return cfg
}

// saveGallery persists the gallery during shutdown.
func saveGallery(g *gallery.Gallery) {
	if g.Len() == 0 {
		return
	}
	if err := g.Save(); err != nil {
		fmt.Printf("Warning: failed to save gallery: %v\n", err)
	} else {
		fmt.Printf("Gallery saved to %s (%d faces)\n", g.Path(), g.Len())
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := resolveServeConfig(cmd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder, closeRecorder, err := openRecorder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRecorder()
	if cfg.Database.URL != "" {
		fmt.Println("Attendance log: PostgreSQL")
	} else {
		fmt.Printf("Attendance log: %s\n", cfg.Attendance.LogPath)
	}

	fmt.Printf("Loading gallery from %s...\n", cfg.Gallery.Path)
	g := loadGallery(cfg)
	service := newService(cfg, g, recorder)

	if !mustGetBool(cmd, "no-ingest") {
		result, err := ingest.Run(ctx, newExtractor(cfg), g, ingest.Options{
			Dir:          cfg.Ingest.Dir,
			Extensions:   cfg.Ingest.Extensions,
			Workers:      cfg.Ingest.Workers,
			SkipExisting: mustGetBool(cmd, "skip-existing"),
		})
		if err != nil {
			fmt.Printf("Warning: picture ingest failed: %v\n", err)
		} else if result.Loaded > 0 || len(result.Failed) > 0 {
			fmt.Printf("Ingested %d faces from %s (%d failed, %d skipped)\n",
				result.Loaded, cfg.Ingest.Dir, len(result.Failed), result.Skipped)
		}
	}

	server := web.NewServer(&cfg.Web, service, recorder)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Printf("Starting Face Attendance on http://%s\n", cfg.Web.Addr())
	fmt.Printf("Gallery: %d faces, match threshold %.2f\n", g.Len(), cfg.Recognition.MatchThreshold)
	fmt.Println("Press Ctrl+C to stop")

	return runUntilSignal(ctx, server, sigChan, func() { saveGallery(g) })
}

// lifecycle is the part of the web server runUntilSignal drives.
type lifecycle interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// runUntilSignal starts srv and returns once a signal has arrived and the
// server has drained in-flight requests. beforeShutdown runs first.
func runUntilSignal(ctx context.Context, srv lifecycle, sig <-chan os.Signal, beforeShutdown func()) error {
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sig
		fmt.Println("\nShutting down...")
		beforeShutdown()

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-shutdownDone
	return nil
}
