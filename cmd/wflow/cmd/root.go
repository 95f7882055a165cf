package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"whisperflow/cmd/wflow/cmd/exportcmd"
	"whisperflow/cmd/wflow/cmd/jobs"
	"whisperflow/cmd/wflow/cmd/search"
	"whisperflow/cmd/wflow/cmd/serve"
	"whisperflow/cmd/wflow/cmd/stats"
	"whisperflow/cmd/wflow/cmd/transcribe"
	"whisperflow/cmd/wflow/cmd/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wflow",
	Short: "Audio transcription job engine",
	Long: `wflow runs audio transcription jobs against a single inference slot.

- Submissions are deduplicated by content hash
- Job lifecycle is durably tracked in SQLite
- Transcripts are full-text searchable and exportable`,
	TraverseChildren: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serve.Cmd)
	rootCmd.AddCommand(transcribe.Cmd)
	rootCmd.AddCommand(jobs.Cmd)
	rootCmd.AddCommand(search.Cmd)
	rootCmd.AddCommand(stats.Cmd)
	rootCmd.AddCommand(exportcmd.Cmd)
	rootCmd.AddCommand(version.Cmd)
}
