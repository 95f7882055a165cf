package transcribe

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"whisperflow/internal/app"
	"whisperflow/internal/app/model"
	"whisperflow/internal/app/orchestrator"
	"whisperflow/internal/config"
)

var (
	modelSize string
	language  string
	task      string
	beamSize  int
	noVAD     bool
)

func init() {
	Cmd.Flags().StringVarP(&modelSize, "model", "m", "", "model size (tiny, base, small, medium, large, large-v2, large-v3)")
	Cmd.Flags().StringVarP(&language, "language", "l", "", "language hint (default: auto-detect)")
	Cmd.Flags().StringVarP(&task, "task", "t", "transcribe", "task (transcribe or translate)")
	Cmd.Flags().IntVarP(&beamSize, "beam-size", "b", 0, "beam size (1-10)")
	Cmd.Flags().BoolVar(&noVAD, "no-vad", false, "disable voice activity filtering")
}

// Cmd represents the transcribe command
var Cmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe a single audio file and print the transcript",
	Args:  cobra.ExactArgs(1),
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

		ctx := context.Background()
		if err := application.Orchestrator.Start(ctx); err != nil {
			log.Fatalf("orchestrator start failed: %v", err)
		}

		opts := orchestrator.Options{
			ModelSize: modelSize,
			TaskType:  model.TaskType(task),
			BeamSize:  beamSize,
			VADFilter: !noVAD,
		}
		if language != "" {
			opts.Language = &language
		}

		events, unsubscribe := application.Orchestrator.Subscribe()
		defer unsubscribe()

		jobID, err := application.Orchestrator.Submit(ctx, args[0], opts)
		if err != nil {
			log.Fatalf("submission failed: %v", err)
		}
		fmt.Printf("job %s submitted\n", jobID)

		job := waitForTerminal(application, jobID, events)
		switch job.Status {
		case model.StatusCompleted:
			result, err := application.Orchestrator.GetResult(ctx, jobID)
			if err != nil {
				log.Fatalf("cannot read result: %v", err)
			}
			fmt.Println()
			fmt.Println(result.Text)
		case model.StatusFailed:
			msg := "unknown error"
			if job.ErrorMessage != nil {
				msg = *job.ErrorMessage
			}
			fmt.Fprintf(os.Stderr, "job failed: %s\n", msg)
			os.Exit(1)
		default:
			fmt.Fprintf(os.Stderr, "job ended in state %s\n", job.Status)
			os.Exit(1)
		}
	},
}

// waitForTerminal renders a progress bar fed by segment events while
// polling for the job's terminal state.
func waitForTerminal(application *app.App, jobID string, events <-chan orchestrator.ProgressEvent) *model.Job {
	progress := mpb.New(mpb.WithRefreshRate(120 * time.Millisecond))
	var bar *mpb.Bar

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if ok && ev.JobID == jobID {
				if bar == nil {
					bar = newBar(progress, application, jobID)
				}
				if bar != nil {
					bar.SetCurrent(int64(ev.End * 1000))
				}
			}
		case <-ticker.C:
			job, err := application.Orchestrator.GetJob(context.Background(), jobID)
			if err != nil {
				log.Fatalf("cannot read job: %v", err)
			}
			if job.Status.Terminal() {
				if bar != nil {
					bar.Abort(true)
				}
				progress.Wait()
				return job
			}
		}
	}
}

func newBar(progress *mpb.Progress, application *app.App, jobID string) *mpb.Bar {
	job, err := application.Orchestrator.GetJob(context.Background(), jobID)
	if err != nil || job.DurationSeconds == nil {
		return nil
	}

	return progress.AddBar(int64(*job.DurationSeconds*1000),
		mpb.PrependDecorators(
			decor.Name("transcribing "),
			decor.Percentage(),
		),
		mpb.AppendDecorators(
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)
}
