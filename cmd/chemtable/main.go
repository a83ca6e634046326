package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/biomonlab/chemtable/internal/app"
	"github.com/biomonlab/chemtable/internal/casgemini"
	"github.com/biomonlab/chemtable/internal/config"
	"github.com/biomonlab/chemtable/internal/hmdb"
	"github.com/biomonlab/chemtable/internal/pubmed"
	"github.com/biomonlab/chemtable/internal/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "validate":
		os.Exit(runValidate(ctx, os.Args[2:]))
	case "hmdb":
		os.Exit(runHMDB(ctx, os.Args[2:]))
	case "pubmed":
		os.Exit(runPubMed(ctx, os.Args[2:]))
	case "suggest-cas":
		os.Exit(runSuggestCAS(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func fail(format string, args ...any) int {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	return 1
}

func runValidate(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	inputPath := fs.String("input", "", "Input CSV file path")
	outputPath := fs.String("output", "", "Output CSV path for invalid rows (optional; report-only when empty)")
	column := fs.String("column", "cas_number", "Name of the CAS number column")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "validate requires --input")
		return 2
	}

	if err := app.RunValidate(ctx, *inputPath, *outputPath, *column); err != nil {
		return fail("validate failed: %s", util.RedactSecrets(err.Error()))
	}
	return 0
}

type lookupFlags struct {
	fs         *flag.FlagSet
	inputPath  *string
	outputPath *string
	policyPath *string
	opts       app.RunOptions
}

func newLookupFlags(name string, env app.RunOptions) *lookupFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	lf := &lookupFlags{fs: fs}
	lf.inputPath = fs.String("input", "", "Input CSV file path")
	lf.outputPath = fs.String("output", "", "Output CSV file path (doubles as resume state)")
	lf.policyPath = fs.String("policy", "", "YAML policy file with endpoints and status-match settings (optional)")
	fs.IntVar(&lf.opts.MaxRetries, "max-retries", env.MaxRetries, "Max inline retries per row for transient failures (env: MAX_RETRIES)")
	fs.DurationVar(&lf.opts.RequestTimeout, "request-timeout", env.RequestTimeout, "Per-lookup timeout; a timeout is retried like any transient failure (env: REQUEST_TIMEOUT)")
	fs.Float64Var(&lf.opts.RateLimitRPS, "rate-limit-rps", env.RateLimitRPS, "Global lookup rate limit (RPS), 0 disables (env: RATE_LIMIT_RPS)")
	fs.IntVar(&lf.opts.FlushEvery, "flush-every", env.FlushEvery, "Persist progress after this many resolved rows (env: FLUSH_EVERY)")
	return lf
}

func (lf *lookupFlags) parse(args []string) (config.Config, int) {
	if err := lf.fs.Parse(args); err != nil {
		return config.Config{}, 2
	}
	if *lf.inputPath == "" || *lf.outputPath == "" {
		_, _ = fmt.Fprintf(os.Stderr, "%s requires --input and --output\n", lf.fs.Name())
		return config.Config{}, 2
	}
	cfg, err := config.Load(*lf.policyPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return config.Config{}, 2
	}
	return cfg, 0
}

func runHMDB(ctx context.Context, args []string) int {
	env, err := loadRunOptionsFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}

	lf := newLookupFlags("hmdb", env)
	column := lf.fs.String("column", "cas_number", "Name of the CAS number column")
	cfg, code := lf.parse(args)
	if code != 0 {
		return code
	}

	client := hmdb.NewClient(cfg.HMDB.BaseURL)
	if err := app.RunHMDB(ctx, *lf.inputPath, *lf.outputPath, *column, client, cfg.StatusPolicy(), lf.opts); err != nil {
		return fail("hmdb run failed: %s", util.RedactSecrets(err.Error()))
	}
	return 0
}

func runPubMed(ctx context.Context, args []string) int {
	env, err := loadRunOptionsFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}

	lf := newLookupFlags("pubmed", env)
	column := lf.fs.String("name-column", "chemical", "Name of the chemical name column")
	searchExpr := lf.fs.String("search-expr", "", "Search expression appended to every query (overrides policy file)")
	cfg, code := lf.parse(args)
	if code != 0 {
		return code
	}

	expr := cfg.PubMed.SearchExpr
	if *searchExpr != "" {
		expr = *searchExpr
	}
	client := pubmed.NewClient(cfg.PubMed.BaseURL, expr)
	if err := app.RunPubMed(ctx, *lf.inputPath, *lf.outputPath, *column, client, lf.opts); err != nil {
		return fail("pubmed run failed: %s", util.RedactSecrets(err.Error()))
	}
	return 0
}

func runSuggestCAS(ctx context.Context, args []string) int {
	env, err := loadRunOptionsFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	gemEnv := loadGeminiConfigFromEnv()

	lf := newLookupFlags("suggest-cas", env)
	column := lf.fs.String("name-column", "chemical", "Name of the chemical name column")
	model := lf.fs.String("gemini-model", gemEnv.Model, "Gemini model name (env: GEMINI_MODEL)")
	baseURL := lf.fs.String("gemini-base-url", gemEnv.BaseURL, "Gemini API base URL override (env: GEMINI_BASE_URL)")
	_, code := lf.parse(args)
	if code != 0 {
		return code
	}

	suggester, err := casgemini.New(ctx, casgemini.Config{
		APIKey:  gemEnv.APIKey,
		Model:   *model,
		BaseURL: *baseURL,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "gemini config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}

	if err := app.RunSuggestCAS(ctx, *lf.inputPath, *lf.outputPath, *column, suggester, lf.opts); err != nil {
		return fail("suggest-cas run failed: %s", util.RedactSecrets(err.Error()))
	}
	return 0
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `chemtable: CAS validation and resumable dataset enrichment for chemistry CSVs

Usage:
  chemtable <command> [flags]

Commands:
  validate     Check the CAS number column and report/export invalid rows
  hmdb         Add hmdb_id and hmdb_status columns from the Human Metabolome Database
  pubmed       Add a pubmed_results column with PubMed result counts per chemical name
  suggest-cas  Add a cas_suggestion column via Gemini web search (requires GEMINI_API_KEY)

Enrichment commands write progress to --output after every resolved row
(see --flush-every); re-running with the same --output resumes where the
previous run stopped.

Examples:
  chemtable validate --input chemicals.csv --output invalid.csv
  chemtable hmdb --input chemicals.csv --output enriched.csv --rate-limit-rps 0.5

Environment:
  MAX_RETRIES      Max inline retries per row (default 3)
  REQUEST_TIMEOUT  Per-lookup timeout (default 30s)
  RATE_LIMIT_RPS   Global lookup rate limit (default 0.5)
  FLUSH_EVERY      Rows between progress writes (default 1)

Environment (Gemini, suggest-cas only):
  GEMINI_API_KEY   Gemini API key (required)
  GEMINI_MODEL     Gemini model name (required)
  GEMINI_BASE_URL  Optional base URL override (proxies/testing)

`)
}

func loadRunOptionsFromEnv() (app.RunOptions, error) {
	maxRetries, err := envInt("MAX_RETRIES", 3)
	if err != nil {
		return app.RunOptions{}, err
	}
	requestTimeout, err := envDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return app.RunOptions{}, err
	}
	// Default mirrors the courtesy delay the source databases expect
	// between successive scrape requests.
	rateLimitRPS, err := envFloat("RATE_LIMIT_RPS", 0.5)
	if err != nil {
		return app.RunOptions{}, err
	}
	flushEvery, err := envInt("FLUSH_EVERY", 1)
	if err != nil {
		return app.RunOptions{}, err
	}

	return app.RunOptions{
		MaxRetries:     maxRetries,
		RequestTimeout: requestTimeout,
		RateLimitRPS:   rateLimitRPS,
		FlushEvery:     flushEvery,
	}, nil
}

func loadGeminiConfigFromEnv() casgemini.Config {
	return casgemini.Config{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Model:   os.Getenv("GEMINI_MODEL"),
		BaseURL: os.Getenv("GEMINI_BASE_URL"),
	}
}
