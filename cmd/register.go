package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <user-id> <image>",
	Short: "Enroll a face image under a user id",
	Long: `Extract the face embedding of an image and add it to the gallery under the
given user id. The gallery is saved immediately. A user may be registered
several times to add more samples.`,
	Args: cobra.ExactArgs(2),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	userID, imagePath := args[0], args[1]
	cfg := loadConfig()

	image, err := os.ReadFile(imagePath) //nolint:gosec // path is a CLI argument
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	g := loadGallery(cfg)
	service := newService(cfg, g, nil)

	if err := service.Register(context.Background(), userID, image); err != nil {
		return fmt.Errorf("registering %s: %w", userID, err)
	}

	successColor.Printf("Registered %s", userID)
	fmt.Printf(" (%d faces in %s)\n", g.Len(), g.Path())
	return nil
}
