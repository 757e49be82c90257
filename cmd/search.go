package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/awertt/midi-proxy/internal/api"
	"github.com/awertt/midi-proxy/internal/scraper"
)

type searchFlags struct {
	maxPages    int
	maxResults  int
	concurrency int
	timeoutMs   int
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Runs one bitmidi search and prints the JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearchCommand(cmd, args[0], flags)
		},
	}
	cmd.Flags().IntVar(&flags.maxPages, "max-pages", 0, "listing pages to walk (0 = default)")
	cmd.Flags().IntVar(&flags.maxResults, "max-results", 0, "detail pages to visit (0 = default)")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "parallel detail fetches (0 = default)")
	cmd.Flags().IntVar(&flags.timeoutMs, "timeout-ms", 0, "per-request timeout in ms (0 = default)")
	return cmd
}

func runSearchCommand(cmd *cobra.Command, query string, flags searchFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	svc := appInstance.GetSearch()
	req, err := svc.Limits().Normalize(scraper.RawSearchParams{
		Query:       query,
		MaxPages:    flagValue(flags.maxPages),
		MaxResults:  flagValue(flags.maxResults),
		Concurrency: flagValue(flags.concurrency),
		TimeoutMs:   flagValue(flags.timeoutMs),
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	res, err := svc.Search(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(api.NewSearchResponse(res)); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// flagValue maps an unset (zero) flag to an absent parameter.
func flagValue(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}
