package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	failColor    = color.New(color.FgRed, color.Bold)
	labelColor   = color.New(color.FgCyan)
)

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// printField prints an aligned "label: value" line.
func printField(label string, value any) {
	labelColor.Printf("  %-10s", label+":")
	fmt.Printf(" %v\n", value)
}
