package search

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"whisperflow/internal/app"
	"whisperflow/internal/config"
)

var (
	language string
	limit    int
)

func init() {
	Cmd.Flags().StringVarP(&language, "language", "l", "", "filter by language")
	Cmd.Flags().IntVar(&limit, "limit", 20, "maximum hits")
}

// Cmd represents the search command
var Cmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over transcripts",
	Args:  cobra.MinimumNArgs(1),
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

		query := strings.Join(args, " ")
		hits, err := application.Store.Search(context.Background(), query, language, limit)
		if err != nil {
			log.Fatal(err)
		}

		if len(hits) == 0 {
			fmt.Println("no matches")
			return
		}
		for _, hit := range hits {
			snippet := strings.NewReplacer("<mark>", ">>", "</mark>", "<<").Replace(hit.Snippet)
			fmt.Printf("%s [%s]\n  %s\n", hit.JobID, hit.Language, snippet)
		}
	},
}
