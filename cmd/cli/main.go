package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/dvloznov/demand-dashboard/internal/analytics"
	"github.com/dvloznov/demand-dashboard/internal/config"
	"github.com/dvloznov/demand-dashboard/internal/dashboard"
	"github.com/dvloznov/demand-dashboard/internal/dataset"
	"github.com/dvloznov/demand-dashboard/internal/forecast"
	"github.com/dvloznov/demand-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/demand-dashboard/internal/logger"
	"github.com/dvloznov/demand-dashboard/internal/source"
)

// errUsage marks bad invocations; main prints the usage text for them.
var errUsage = errors.New("usage")

func main() {
	log := logger.New().Level(zerolog.WarnLevel)

	err := run(context.Background(), os.Args[1:], os.Stdout, log)
	if errors.Is(err, errUsage) {
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

// run dispatches args[0] to its command.
func run(ctx context.Context, args []string, out io.Writer, log zerolog.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given", errUsage)
	}

	ctx = logger.WithContext(ctx, log)
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "query":
		return runQuery(ctx, rest, out, log)
	case "regions":
		return runRegions(ctx, rest, out, log)
	case "inspect":
		return runInspect(ctx, rest, out, log)
	case "upload":
		return runUpload(ctx, rest, out, log)
	case "publish":
		return runPublish(ctx, rest, out, log)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Demand Dashboard CLI")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  cli <command> [options]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  query     Print the dashboard result for a filter as JSON")
	fmt.Fprintln(w, "  regions   List the regions in the dataset")
	fmt.Fprintln(w, "  inspect   Show the load summary and detected columns")
	fmt.Fprintln(w, "  upload    Upload a local dataset file to GCS")
	fmt.Fprintln(w, "  publish   Load the normalized dataset into a BigQuery table")
	fmt.Fprintln(w, "  help      Show this help message")
	fmt.Fprintln(w, "\nRun 'cli <command> -h' for more information on a command.")
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// sourceFlags are shared by the commands that read the dataset.
type sourceFlags struct {
	config *string
	file   *string
}

func addSourceFlags(fs *flag.FlagSet) sourceFlags {
	return sourceFlags{
		config: fs.String("config", "", "Path to a YAML config file (or set "+config.PathEnvVar+")"),
		file:   fs.String("file", "", "Local .csv or .xlsx dataset; overrides the configured source"),
	}
}

// load reads the config and the dataset it points at.
func (f sourceFlags) load(ctx context.Context, log zerolog.Logger) (*config.Config, *dataset.Dataset, error) {
	cfg, err := config.Load(*f.config)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if *f.file != "" {
		cfg.Source = config.SourceConfig{Kind: config.SourceFile, Path: *f.file}
	}

	src, err := source.New(cfg.Source)
	if err != nil {
		return nil, nil, err
	}
	ds, err := dataset.Load(ctx, src, log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, ds, nil
}

func runQuery(ctx context.Context, args []string, out io.Writer, log zerolog.Logger) error {
	fs := newFlagSet("query")
	sf := addSourceFlags(fs)
	region := fs.String("region", "", "Region to filter on")
	start := fs.String("start", "", "Start date (YYYY-MM-DD), inclusive")
	end := fs.String("end", "", "End date (YYYY-MM-DD), inclusive")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	cfg, ds, err := sf.load(ctx, log)
	if err != nil {
		return err
	}

	queue := inmemory.NewQueue(1, 1, nil, log)
	model := forecast.NewModel(forecast.Options{
		ChangepointPriorScale: cfg.Forecast.ChangepointPriorScale,
		SeasonalityPriorScale: cfg.Forecast.SeasonalityPriorScale,
		Samples:               cfg.Forecast.Samples,
		Seed:                  cfg.Forecast.Seed,
	}, log)
	if err := queue.Start(ctx, dashboard.FitHandler(model)); err != nil {
		return fmt.Errorf("start forecast worker: %w", err)
	}
	defer queue.Close()

	svc := dashboard.NewService(ds, queue, dashboard.Options{
		TrendWindowDays: cfg.API.TrendWindowDays,
		FitBudget:       cfg.Forecast.FitBudget,
	}, log)

	result, err := svc.Query(ctx, analytics.Params{Region: *region, Start: *start, End: *end})
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(out, string(b))
	return nil
}

func runRegions(ctx context.Context, args []string, out io.Writer, log zerolog.Logger) error {
	fs := newFlagSet("regions")
	sf := addSourceFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, ds, err := sf.load(ctx, log)
	if err != nil {
		return err
	}

	for _, r := range ds.Regions() {
		fmt.Fprintln(out, r)
	}
	return nil
}

func runInspect(ctx context.Context, args []string, out io.Writer, log zerolog.Logger) error {
	fs := newFlagSet("inspect")
	sf := addSourceFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, ds, err := sf.load(ctx, log)
	if err != nil {
		return err
	}
	stats := ds.Stats()
	schema := ds.Schema()

	fmt.Fprintln(out, "\n=== Dataset ===")
	fmt.Fprintf(out, "Source:         %s\n", ds.Source())
	fmt.Fprintf(out, "Loaded:         %s\n", ds.LoadedAt().Format(time.RFC3339))
	fmt.Fprintf(out, "Rows read:      %d\n", stats.RowsRead)
	fmt.Fprintf(out, "Rows dropped:   %d\n", stats.RowsDropped)
	fmt.Fprintf(out, "Fields coerced: %d\n", stats.FieldsCoerced)
	fmt.Fprintf(out, "Transactions:   %d\n", ds.Len())
	fmt.Fprintf(out, "Regions:        %d\n", len(ds.Regions()))

	fmt.Fprintln(out, "\n=== Columns ===")
	fmt.Fprintf(out, "Region:        %t\n", schema.HasRegion)
	fmt.Fprintf(out, "Product ID:    %t\n", schema.HasProductID)
	fmt.Fprintf(out, "Product name:  %t\n", schema.HasProductName)
	fmt.Fprintf(out, "Original cost: %t\n", schema.HasOriginalCost)
	fmt.Fprintf(out, "Revenue:       %t\n", schema.HasRevenue)
	fmt.Fprintf(out, "Profit:        %t\n", schema.HasProfit)

	if txs := ds.Transactions(); len(txs) > 0 {
		first, last := txs[0].Date, txs[0].Date
		for _, tx := range txs {
			if tx.Date.Before(first) {
				first = tx.Date
			}
			if tx.Date.After(last) {
				last = tx.Date
			}
		}
		fmt.Fprintf(out, "\nDate range:    %s to %s\n", first, last)
	}
	fmt.Fprintln(out)
	return nil
}

func runUpload(ctx context.Context, args []string, out io.Writer, log zerolog.Logger) error {
	fs := newFlagSet("upload")
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to a local .csv or .xlsx dataset")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *bucketName == "" || *filePath == "" {
		return fmt.Errorf("%w: cli upload -bucket NAME -file PATH", errUsage)
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}
	if _, err := source.FormatOf(*objectName); err != nil {
		return fmt.Errorf("object name must keep a dataset extension: %w", err)
	}

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading dataset to GCS")

	if err := source.NewGCSStorageService().UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		return err
	}

	uri := source.GCSURI(*bucketName, *objectName)
	fmt.Fprintf(out, "Uploaded %s to %s\n", *filePath, uri)
	fmt.Fprintf(out, "Serve it with DEMAND_SOURCE_KIND=gcs DEMAND_SOURCE_GCS_URI=%s\n", uri)
	return nil
}

func runPublish(ctx context.Context, args []string, out io.Writer, log zerolog.Logger) error {
	fs := newFlagSet("publish")
	sf := addSourceFlags(fs)
	project := fs.String("project", "", "GCP project ID")
	datasetID := fs.String("dataset", "", "BigQuery dataset ID")
	tableID := fs.String("table", "sales", "BigQuery table ID (created if missing)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *project == "" || *datasetID == "" {
		return fmt.Errorf("%w: cli publish -project ID -dataset ID [-table NAME] [-file PATH]", errUsage)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	_, ds, err := sf.load(ctx, log)
	if err != nil {
		return err
	}

	if err := source.PublishToBigQuery(ctx, *project, *datasetID, *tableID, ds.Transactions()); err != nil {
		return err
	}

	target := source.NewBigQuerySource(*project, *datasetID, *tableID)
	fmt.Fprintf(out, "Published %d rows to %s\n", ds.Len(), target.Describe())
	return nil
}
