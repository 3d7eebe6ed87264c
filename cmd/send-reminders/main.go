// Command send-reminders runs one reminder pass and exits. Intended for
// cron; the in-server daily loop and this command share the dedup log,
// so overlapping schedules never double-send.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"review-tracker-api/config"
	"review-tracker-api/services"
	"review-tracker-api/utils"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config.InitDB()

	var (
		dateRaw string
		preview bool
	)

	flag.StringVar(&dateRaw, "date", "", "reference date YYYY-MM-DD (default today)")
	flag.BoolVar(&preview, "preview", false, "classify without sending or logging")
	flag.Parse()

	today := time.Now()
	if dateRaw != "" {
		parsed, ok := utils.ParseDate(dateRaw)
		if !ok {
			log.Fatalf("invalid date '%s', expected YYYY-MM-DD", dateRaw)
		}
		today = parsed
	}

	reminders := services.NewReminderService(nil, nil)

	if preview {
		batch, err := reminders.ItemsNeedingReminders(context.Background(), today)
		if err != nil {
			log.Fatalf("reminder preview failed: %v", err)
		}
		fmt.Printf("Date: %s\n", today.Format("2006-01-02"))
		fmt.Printf("Single-reviewer reminders: %d\n", len(batch.SingleReviewer))
		fmt.Printf("Multi-reviewer reminders: %d\n", len(batch.MultiReviewer))
		fmt.Printf("QCR reminders: %d\n", len(batch.MultiReviewerQcr))
		fmt.Printf("Skipped: %d\n", len(batch.Skipped))
		for _, skip := range batch.Skipped {
			fmt.Printf("  item %d (%s %s) %s: %s\n",
				skip.ItemID, skip.Bucket, skip.Identifier, skip.Role, skip.Reason)
		}
		fmt.Println("Preview complete. No emails were sent.")
		return
	}

	summary, err := reminders.ProcessAll(context.Background(), today)
	if err != nil {
		if errors.Is(err, services.ErrReminderRunBusy) {
			log.Fatal("reminder run already in progress (advisory lock held)")
		}
		log.Fatalf("reminder run failed: %v", err)
	}

	fmt.Printf("Reminders sent: %d reviewer, %d multi-reviewer, %d qcr (suppressed: %d, skipped: %d)\n",
		summary.SingleReviewerSent,
		summary.MultiReviewerSent,
		summary.QcrSent,
		summary.Suppressed,
		summary.Skipped,
	)

	for _, failure := range summary.Errors {
		fmt.Printf("  error: %s\n", failure)
	}

	if len(summary.Errors) > 0 {
		os.Exit(2)
	}
}
