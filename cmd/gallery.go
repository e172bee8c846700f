package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Show the enrolled users",
	RunE:  runGallery,
}

func init() {
	rootCmd.AddCommand(galleryCmd)

	galleryCmd.Flags().Bool("json", false, "Output as JSON")
}

type galleryOutput struct {
	Path    string         `json:"path"`
	Entries int            `json:"entries"`
	Users   map[string]int `json:"users"`
}

func runGallery(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	g := loadGallery(cfg)
	identities := g.Identities()

	if mustGetBool(cmd, "json") {
		out := galleryOutput{Path: g.Path(), Entries: g.Len(), Users: make(map[string]int, len(identities))}
		for _, id := range identities {
			out.Users[id.UserID] = id.Samples
		}
		return outputJSON(out)
	}

	printField("Gallery", g.Path())
	printField("Entries", g.Len())
	printField("Users", len(identities))
	for _, id := range identities {
		labelColor.Printf("    %s", id.UserID)
		if id.Samples > 1 {
			fmt.Printf(" (%d samples)", id.Samples)
		}
		fmt.Println()
	}
	return nil
}
