package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/coordinator"
	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

const prompt = "Tickers: "

var quitWords = map[string]bool{"quit": true, "exit": true, "q": true}

// newScrapeCmd creates and configures the 'scrape' subcommand.
func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape [TICKER...]",
		Short: "Downloads documents for one or more tickers",
		Long: `Logs in (reusing the saved session when it still works) and downloads the
documents of each ticker in turn. Without arguments an interactive prompt
accepts space-separated tickers until 'quit' or end of input.`,
		Example: `  docscraper scrape TCS INFY
  docscraper scrape`,
		Args: cobra.ArbitraryArgs,
		RunE: withApp(runScrape),
	}
}

func runScrape(cmd *cobra.Command, appInstance App, args []string) error {
	logger := appInstance.Logger()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var entities []string
	if len(args) > 0 {
		entities = parseEntities(args, logger)
		if len(entities) == 0 {
			return fmt.Errorf("no valid tickers in %v", args)
		}
	}

	logger.Info("Checking login status...")
	if err := appInstance.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer func() {
		if err := appInstance.SaveSession(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to save session", zap.Error(err))
		}
	}()

	out := cmd.OutOrStdout()
	if len(entities) > 0 {
		fmt.Fprintf(out, "Scraping: %s\n", strings.Join(entities, ", "))
		report(out, appInstance.Scrape(ctx, entities))
		return nil
	}

	fmt.Fprintln(out, "Enter ticker symbols to scrape, e.g. TCS or TCS INFY WIPRO. Type 'quit' to exit.")
	return runInteractive(ctx, cmd.InOrStdin(), out, logger, func(ctx context.Context, entities []string) {
		fmt.Fprintf(out, "Scraping %d ticker(s): %s\n", len(entities), strings.Join(entities, ", "))
		report(out, appInstance.Scrape(ctx, entities))
		fmt.Fprintln(out, "Enter more tickers, or type 'quit' to exit.")
	})
}

// runInteractive prompts for tickers until a quit word, an empty line, end
// of input or cancellation of ctx.
func runInteractive(
	ctx context.Context,
	in io.Reader,
	out io.Writer,
	logger *zap.Logger,
	scrapeFn func(ctx context.Context, entities []string),
) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, prompt)
		var raw string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			raw = strings.TrimSpace(line)
		}
		if raw == "" || quitWords[strings.ToLower(raw)] {
			return nil
		}
		entities := parseEntities(strings.Fields(raw), logger)
		if len(entities) == 0 {
			continue
		}
		scrapeFn(ctx, entities)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// parseEntities upper-cases tokens and drops the ones that cannot be tickers.
func parseEntities(tokens []string, logger *zap.Logger) []string {
	entities := make([]string, 0, len(tokens))
	for _, token := range tokens {
		entity, err := scrape.NormalizeEntity(token)
		if err != nil {
			logger.Warn("Skipping input", zap.String("token", token), zap.Error(err))
			continue
		}
		entities = append(entities, entity)
	}
	return entities
}

func report(out io.Writer, summaries []coordinator.Summary) {
	for _, s := range summaries {
		if s.Err != nil {
			fmt.Fprintf(out, "%s: failed: %v\n", s.Entity, s.Err)
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", s.Entity, s)
		fmt.Fprintf(out, "  Files in: %s\n", s.Dir)
	}
}
