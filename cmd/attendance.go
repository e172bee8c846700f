package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show recent attendance records",
	RunE:  runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().Int("limit", constants.DefaultRecentLimit, "Number of records to show (0 = all)")
	attendanceCmd.Flags().Bool("json", false, "Output as JSON")
	attendanceCmd.Flags().String("count", "", "Print the number of successful check-ins of this user instead")
}

type countOutput struct {
	UserID string `json:"userId"`
	Count  int    `json:"count"`
}

func runAttendance(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	ctx := context.Background()

	recorder, closeRecorder, err := openRecorder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRecorder()

	if userID := mustGetString(cmd, "count"); userID != "" {
		return runAttendanceCount(ctx, cmd, recorder, userID)
	}

	records, err := recorder.Recent(ctx, mustGetInt(cmd, "limit"))
	if err != nil {
		return fmt.Errorf("reading attendance log: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(records)
	}

	if len(records) == 0 {
		fmt.Println("No attendance records")
		return nil
	}
	for _, r := range records {
		status := successColor.Sprint(r.Status)
		if r.Status != attendance.StatusSuccess {
			status = failColor.Sprint(r.Status)
		}
		fmt.Printf("%s  %-7s  %-20s  %s\n", r.Timestamp.Format(attendance.TimestampLayout), status, r.UserID, r.Address)
	}
	return nil
}

func runAttendanceCount(ctx context.Context, cmd *cobra.Command, recorder attendance.Recorder, userID string) error {
	counter, ok := recorder.(attendance.Counter)
	if !ok {
		return fmt.Errorf("attendance backend cannot count check-ins")
	}
	count, err := counter.CountByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("counting attendance for %s: %w", userID, err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(countOutput{UserID: userID, Count: count})
	}
	printField("User", userID)
	printField("Check-ins", count)
	return nil
}
