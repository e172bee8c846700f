package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <image>",
	Short: "Match a face image against the gallery",
	Long: `Extract the face embedding of an image, search the gallery for the closest
enrolled user and print the verdict. The attempt is written to the attendance
log unless --no-record is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("address", "", "Check-in location (defaults to ATTENDANCE_DEFAULT_ADDRESS)")
	verifyCmd.Flags().Float64("threshold", constants.DefaultMatchThreshold, "Match threshold (overrides MATCH_THRESHOLD)")
	verifyCmd.Flags().Bool("no-record", false, "Do not write the attempt to the attendance log")
	verifyCmd.Flags().Bool("json", false, "Output as JSON")
}

type verifyOutput struct {
	IsMatch     bool    `json:"isMatch"`
	UserID      *string `json:"userId"`
	ClosestUser string  `json:"closestUser"`
	Score       float64 `json:"score"`
	Threshold   float64 `json:"threshold"`
	Address     string  `json:"address"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	overrideFloat64(cmd, "threshold", &cfg.Recognition.MatchThreshold)
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	var recorder attendance.Recorder
	if !mustGetBool(cmd, "no-record") {
		rec, closeRecorder, err := openRecorder(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeRecorder()
		recorder = rec
	}

	service := newService(cfg, loadGallery(cfg), recorder)
	result, err := service.Verify(ctx, image, mustGetString(cmd, "address"))
	if err != nil {
		return fmt.Errorf("verifying %s: %w", args[0], err)
	}

	if jsonOutput {
		out := verifyOutput{
			IsMatch:     result.IsMatch,
			ClosestUser: result.BestUserID,
			Score:       result.Score,
			Threshold:   service.Threshold(),
			Address:     result.Address,
		}
		if result.IsMatch {
			out.UserID = &result.UserID
		}
		return outputJSON(out)
	}

	if result.IsMatch {
		successColor.Printf("MATCH %s\n", result.UserID)
	} else {
		failColor.Println("NO MATCH")
	}
	printField("Score", fmt.Sprintf("%.4f (threshold %.2f)", result.Score, service.Threshold()))
	if result.BestUserID != "" {
		printField("Closest", result.BestUserID)
	}
	printField("Address", result.Address)
	return nil
}
