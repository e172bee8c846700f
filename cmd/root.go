package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var galleryPath string

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Attendance check-in by face recognition",
	Long: `Face Attendance matches uploaded face photos against a gallery of enrolled
employees and records every check-in to an attendance log.

Face embeddings are computed by an external InsightFace embedding service
(EMBEDDING_URL). The gallery is a single flat file; attendance goes to a CSV
file, or to PostgreSQL when DATABASE_URL is set.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&galleryPath, "gallery", "", "Gallery file (overrides GALLERY_PATH, .zst enables compression)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
