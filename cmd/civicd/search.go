package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kromahlusenii-ops/civic-voices-sub003/config"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/ai"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/platforms"
	"github.com/kromahlusenii-ops/civic-voices-sub003/internal/search"
	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

// stdoutSink prints each stream event as a JSON line for one-shot runs.
type stdoutSink struct {
	enc *json.Encoder
}

func (s *stdoutSink) Send(ev search.Event) error {
	return s.enc.Encode(map[string]interface{}{
		"event": ev.EventType(),
		"data":  ev,
	})
}

func searchCMD() *cobra.Command {
	var cfgPath string
	var sources string
	var timeFilter string
	var sortBy string
	var limit int

	var cmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Run one search from the terminal, printing events as JSON lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			req := search.Request{
				Query:      strings.Join(args, " "),
				TimeFilter: timeFilter,
				MaxResults: limit,
			}
			if req.MaxResults == 0 {
				req.MaxResults = cfg.Platforms.MaxResults
			}
			if sources == "" {
				req.Sources = models.Platforms()
			} else {
				for _, name := range strings.Split(sources, ",") {
					p, err := models.ParsePlatform(strings.TrimSpace(name))
					if err != nil {
						return err
					}
					req.Sources = append(req.Sources, p)
				}
			}
			req.Sort, err = models.ParseSort(sortBy)
			if err != nil {
				return err
			}

			providers := platforms.NewProviders(cfg.Platforms)
			orch := search.NewOrchestrator(providers, ai.NewAnalyzer(cfg.LLM), cfg.Resilience, nil, nil)
			outcome, err := orch.Run(context.Background(), req, &stdoutSink{enc: json.NewEncoder(os.Stdout)})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%d posts in %v (%d warnings)\n", outcome.Summary.TotalPosts, outcome.Duration.Round(time.Millisecond), len(outcome.Warnings))
			return nil
		},
	}
	cmd.Flags().StringVar(&sources, "sources", "", "comma-separated platforms (default all)")
	cmd.Flags().StringVar(&timeFilter, "time", "week", "time filter: 24h, week, month")
	cmd.Flags().StringVar(&sortBy, "sort", "relevance", "sort: relevance, recent, engaged, verified")
	cmd.Flags().IntVar(&limit, "limit", 0, "max results per platform")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
