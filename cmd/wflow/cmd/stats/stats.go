package stats

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"whisperflow/internal/app"
	"whisperflow/internal/config"
)

// Cmd represents the stats command
var Cmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job and storage statistics",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("configuration error: %v", err)
		}
		application, err := app.InitializeApp(cfg)
		if err != nil {
			log.Fatalf("initialization failed: %v", err)
		}
		defer application.Close()

		st, err := application.Store.Statistics(context.Background())
		if err != nil {
			log.Fatal(err)
		}

		fmt.Printf("jobs:       %d total (%d pending, %d processing, %d completed, %d failed, %d cancelled)\n",
			st.TotalJobs, st.PendingJobs, st.ProcessingJobs, st.CompletedJobs, st.FailedJobs, st.CancelledJobs)
		fmt.Printf("audio:      %.1f seconds transcribed\n", st.TotalAudioSeconds)
		fmt.Printf("processing: %.1f seconds average per completed job\n", st.AvgProcessingSeconds)
		fmt.Printf("files:      %d (%.1f MB)\n", st.TotalFiles, float64(st.TotalStorageBytes)/(1024*1024))
	},
}
