package exportcmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"whisperflow/internal/app"
	"whisperflow/internal/app/export"
	"whisperflow/internal/config"
)

var (
	format string
	output string
)

func init() {
	Cmd.Flags().StringVarP(&format, "format", "f", export.FormatSRT,
		fmt.Sprintf("output format (%s)", strings.Join(export.Formats(), ", ")))
	Cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
}

// Cmd represents the export command
var Cmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Export a job's transcript",
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

		result, err := application.Store.GetResult(context.Background(), args[0])
		if err != nil {
			log.Fatal(err)
		}

		out := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				log.Fatalf("cannot create output file: %v", err)
			}
			defer f.Close()
			out = f
		}

		if err := export.Write(out, format, result); err != nil {
			log.Fatal(err)
		}
		if output != "" {
			fmt.Printf("exported %s to %s\n", args[0], output)
		}
	},
}
