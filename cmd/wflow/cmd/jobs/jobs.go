package jobs

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"whisperflow/internal/app"
	"whisperflow/internal/app/model"
	"whisperflow/internal/config"
)

var (
	listStatus string
	listLimit  int
	listPage   int

	purgeOlderThan time.Duration
	purgeStatus    string
)

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "filter by status")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "page size")
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number")

	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 30*24*time.Hour, "minimum job age")
	purgeCmd.Flags().StringVar(&purgeStatus, "status", "completed", "terminal status to purge")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(purgeCmd)
}

// Cmd represents the jobs command
var Cmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage transcription jobs",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		application := mustInit()
		defer application.Close()

		jobs, err := application.Store.ListJobs(context.Background(), model.JobFilter{
			Status: model.JobStatus(listStatus),
			Limit:  listLimit,
			Page:   listPage,
		})
		if err != nil {
			log.Fatal(err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "JOB ID\tSTATUS\tMODEL\tLANGUAGE\tCREATED\tERROR")
		for _, job := range jobs {
			lang := "-"
			if job.DetectedLanguage != nil {
				lang = *job.DetectedLanguage
			} else if job.Language != nil {
				lang = *job.Language
			}
			errMsg := ""
			if job.ErrorMessage != nil {
				errMsg = *job.ErrorMessage
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				job.JobID, job.Status, job.ModelSize, lang,
				job.CreatedAt.Format(time.RFC3339), errMsg)
		}
		w.Flush()
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending or processing job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		application := mustInit()
		defer application.Close()

		// Only queued jobs are cancellable from the CLI; the serve process
		// owns the active inference slot.
		moved, err := application.Store.TransitionJob(context.Background(), args[0],
			model.StatusCancelled, model.StatusPending)
		if err != nil {
			log.Fatal(err)
		}
		if !moved {
			log.Fatalf("job %s is not pending", args[0])
		}
		fmt.Printf("job %s cancelled\n", args[0])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a job and its results",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		application := mustInit()
		defer application.Close()

		ok, err := application.Store.DeleteJob(context.Background(), args[0])
		if err != nil {
			log.Fatal(err)
		}
		if !ok {
			log.Fatalf("job %s not found", args[0])
		}
		fmt.Printf("job %s deleted\n", args[0])
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old terminal jobs",
	Run: func(cmd *cobra.Command, args []string) {
		application := mustInit()
		defer application.Close()

		n, err := application.Store.PurgeJobs(context.Background(),
			purgeOlderThan, model.JobStatus(purgeStatus))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("purged %d %s job(s) older than %s\n", n, purgeStatus, purgeOlderThan)
	},
}

func mustInit() *app.App {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	application, err := app.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	return application
}
