package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/promptlab/pkg/app"
	cfgPkg "github.com/xhad/promptlab/pkg/config"
	"github.com/xhad/promptlab/pkg/menuchat"
	"k8s.io/klog/v2"
)

type Options struct {
	ConfigPath  string
	Provider    string
	Model       string
	DatasetPath string
	Enrich      bool
	Verbose     bool
	Similar     int
}

func main() {
	opts := parseFlags()
	defer klog.Flush()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Options {
	var opts Options

	klog.InitFlags(nil)
	flag.StringVar(&opts.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&opts.Provider, "provider", "", "LLM provider (openai, anthropic, ollama)")
	flag.StringVar(&opts.Model, "model", "", "LLM model to use")
	flag.StringVar(&opts.DatasetPath, "dataset", "", "Short titles CSV or TSV file")
	flag.BoolVar(&opts.Enrich, "enrich", false, "Fetch missing abstracts before indexing")
	flag.BoolVar(&opts.Verbose, "verbose", false, "Print every menu chat stage")
	flag.IntVar(&opts.Similar, "similar", 0, "Number of similar titles used as examples")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <command> [args]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Commands:")
		fmt.Fprintln(flag.CommandLine.Output(), "  index            embed and store the short titles dataset")
		fmt.Fprintln(flag.CommandLine.Output(), "  suggest <title>  suggest short titles for a paper")
		fmt.Fprintln(flag.CommandLine.Output(), "  chat [question]  ask the menu chatbot, interactively without a question")
		fmt.Fprintln(flag.CommandLine.Output(), "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	return opts
}

func loadConfig(opts Options) (*cfgPkg.Config, error) {
	// Flags are applied before environment keys and provider defaults are resolved
	return cfgPkg.LoadConfigWithOverrides(opts.ConfigPath, cfgPkg.Overrides{
		Provider:        opts.Provider,
		Model:           opts.Model,
		DatasetPath:     opts.DatasetPath,
		EnrichAbstracts: opts.Enrich,
		Similar:         opts.Similar,
	})
}

func run(ctx context.Context, opts Options, args []string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	switch args[0] {
	case "index":
		return runIndex(ctx, a)
	case "suggest":
		title := strings.TrimSpace(strings.Join(args[1:], " "))
		if title == "" {
			return fmt.Errorf("suggest needs a paper title")
		}
		return runSuggest(ctx, a, title)
	case "chat":
		return runChat(ctx, a, strings.Join(args[1:], " "), opts.Verbose)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("titles"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func runIndex(ctx context.Context, a *app.App) error {
	cfg := a.Config()

	papers, stats, err := a.LoadDataset()
	if err != nil {
		return err
	}
	color.Green("✓ Loaded %d papers from %s (%d rows dropped)\n", stats.Kept(), cfg.Dataset.Path, stats.Dropped)

	if cfg.Dataset.EnrichAbstracts {
		fetchBar := getProgressBar(len(papers), " Fetching abstracts")
		s, err := a.Scraper(func(string) { fetchBar.Add(1) })
		if err != nil {
			return fmt.Errorf("failed to initialize scraper: %w", err)
		}
		enriched, est, err := s.Enrich(ctx, papers)
		fetchBar.Finish()
		if err != nil {
			return fmt.Errorf("failed to fetch abstracts: %w", err)
		}
		papers = enriched
		color.Green("\n✓ Fetched %d abstracts (%d failed, %d skipped)\n", est.Fetched, est.Failed, est.Skipped)
	}

	storageBar := getProgressBar(len(papers), " Storing in vector database")
	ix, err := a.Indexer(ctx, func(done, total int) {
		storageBar.ChangeMax(total)
		storageBar.Set(done)
	})
	if err != nil {
		return err
	}

	summary, err := ix.Index(ctx, papers)
	storageBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to index titles: %w", err)
	}

	s, err := a.Store(ctx)
	if err != nil {
		return err
	}
	count, err := s.Count(ctx)
	if err != nil {
		return err
	}
	color.Green("\n✓ Indexed %d titles in %d batches, collection %q holds %d\n",
		summary.Upserted, summary.Batches, cfg.Store.Collection, count)
	return nil
}

func runSuggest(ctx context.Context, a *app.App, title string) error {
	s, err := a.Suggester(ctx)
	if err != nil {
		return err
	}

	spinner := getSpinner(" Generating titles...")
	suggestion, err := s.Suggest(ctx, title)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return err
	}

	color.Cyan("\nSimilar titles:")
	for _, doc := range suggestion.Similar {
		fmt.Printf("  %-40s %s\n", doc.Text, color.HiBlackString("%.3f", doc.Similarity))
	}

	color.Green("\nSuggested titles:")
	if len(suggestion.Titles) == 0 {
		color.Yellow("  no new titles in the reply:\n%s\n", suggestion.Raw)
		return nil
	}
	for i, t := range suggestion.Titles {
		fmt.Printf("  %d. %s\n", i+1, t)
	}
	return nil
}

func runChat(ctx context.Context, a *app.App, question string, verbose bool) error {
	chain, err := a.Chain()
	if err != nil {
		return err
	}

	if question != "" {
		return answer(ctx, chain, question, verbose)
	}

	// Interactive chat loop with colored output
	color.Cyan("\nAsk about the menu (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.ToLower(query) == "exit" {
			break
		}
		if query == "" {
			continue
		}

		if err := answer(ctx, chain, query, verbose); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			color.Red("Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func answer(ctx context.Context, chain *menuchat.Chain, query string, verbose bool) error {
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()
	stagePrompt := color.New(color.FgHiBlack).PrintfFunc()

	spinner := getSpinner(" Thinking...")
	res, err := chain.Run(ctx, query)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return err
	}

	if verbose {
		stagePrompt("\n[%s]\n%s\n", menuchat.StageReasoning, res.Reasoning)
		stagePrompt("\n[assessment] food related: %t, on menu: %t\n", res.Assessment.FoodRelated, res.Assessment.OnMenu)
		stagePrompt("\n[%s]\n%s\n", menuchat.StageExtraction, res.Extracted)
		stagePrompt("\n[%s]\n%s\n", menuchat.StageRefinement, res.Refined)
	}
	assistantPrompt("\nAssistant: %s\n", res.Final)
	return nil
}
