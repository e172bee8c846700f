package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/ingest"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Enroll every face image in a directory",
	Long: `Enroll all .png, .jpg, .jpeg and .bmp images of a directory into the gallery.
The user id of each image is its file name without the extension, so
"picture/alice.jpg" is enrolled as "alice". The gallery is saved once at the end.

The directory defaults to INGEST_DIR ("picture").`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Int("workers", 4, "Concurrent embedding requests (overrides INGEST_WORKERS)")
	ingestCmd.Flags().Bool("skip-existing", false, "Do not re-enroll labels already in the gallery")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	overrideInt(cmd, "workers", &cfg.Ingest.Workers)
	if len(args) == 1 {
		cfg.Ingest.Dir = args[0]
	}

	files, err := ingest.Files(cfg.Ingest.Dir, cfg.Ingest.Extensions)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d images in %s\n", len(files), cfg.Ingest.Dir)
	if len(files) == 0 {
		return nil
	}

	g := loadGallery(cfg)
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	result, err := ingest.Run(context.Background(), newExtractor(cfg), g, ingest.Options{
		Dir:          cfg.Ingest.Dir,
		Extensions:   cfg.Ingest.Extensions,
		Workers:      cfg.Ingest.Workers,
		SkipExisting: mustGetBool(cmd, "skip-existing"),
		OnFile:       func(string, error) { _ = bar.Add(1) },
	})
	_ = bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	for _, f := range result.Failed {
		failColor.Printf("  failed ")
		fmt.Printf("%s: %v\n", f.File, f.Err)
	}
	successColor.Printf("Loaded %d faces", result.Loaded)
	fmt.Printf(" (%d failed, %d skipped)\n", len(result.Failed), result.Skipped)
	if result.Saved {
		fmt.Printf("Gallery saved to %s (%d faces)\n", g.Path(), g.Len())
	}
	return nil
}
