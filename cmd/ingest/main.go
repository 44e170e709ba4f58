// Command ingest imports pricing observations and reference data from CSV files
// or a JSON pricing API into the configured stores.
//
// Usage:
//
//	ingest csv --kind observation --file prices.csv
//	ingest csv --kind market --file markets.csv --map region_name=metro
//	ingest preview --kind center --file centers.csv
//	ingest api --url https://vendor.example/prices --auth bearer --token $TOKEN --pagination cursor
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"pricepoint-intel/internal/app"
	"pricepoint-intel/internal/ingestion"
	"pricepoint-intel/internal/observability"
)

func main() {
	cliApp := &cli.App{
		Name:  "ingest",
		Usage: "Import vendor pricing and reference data",
		Flags: app.CommonFlags(),
		Commands: []*cli.Command{
			csvCommand(),
			previewCommand(),
			apiCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func kindFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "kind",
		Aliases: []string{"k"},
		Value:   string(ingestion.KindObservation),
		Usage:   "Record kind (observation, vendor, market, center)",
	}
}

func fileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Path to the CSV file",
		Required: true,
	}
}

func mapFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "map",
		Usage: "Column override as field=header, repeatable",
	}
}

func csvCommand() *cli.Command {
	return &cli.Command{
		Name:  "csv",
		Usage: "Import a CSV file",
		Flags: []cli.Flag{
			kindFlag(),
			fileFlag(),
			mapFlag(),
			&cli.StringFlag{
				Name:  "source",
				Usage: "Source label recorded in metrics (defaults to the file name)",
			},
			&cli.StringFlag{
				Name:  "delimiter",
				Usage: "Field delimiter; sniffed from the header when empty",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Validate only, do not store records",
			},
		},
		Action: runCSV,
	}
}

func runCSV(c *cli.Context) error {
	cfg, logger, err := app.Setup(c)
	if err != nil {
		return err
	}
	mapping, err := parseMapping(c.StringSlice("map"))
	if err != nil {
		return err
	}

	path := c.String("file")
	source := c.String("source")
	if source == "" {
		source = filepath.Base(path)
	}

	var opts []ingestion.CSVOption
	opts = append(opts, ingestion.WithCSVLogger(logger))
	if d := c.String("delimiter"); d != "" {
		r := []rune(d)
		if d == `\t` {
			r = []rune{'\t'}
		}
		opts = append(opts, ingestion.WithDelimiter(r[0]))
	}
	importer := ingestion.NewCSVImporter(ingestion.NewValidator(), opts...)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ctx, stop := app.SignalContext(c.Context, cfg.ShutdownTimeout, logger)
	defer stop()

	metrics := observability.DefaultMetrics
	stores, cleanup, err := app.OpenStores(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	loader := ingestion.NewLoader(stores.Observations, stores.Reference, metrics, logger)
	dryRun := c.Bool("dry-run")

	switch kind := ingestion.Kind(c.String("kind")); kind {
	case ingestion.KindObservation:
		res, err := importer.ImportObservations(f, source, mapping)
		if err != nil {
			return err
		}
		report(logger, kind, res.Total, res.Succeeded, res.Failed, res.Errors, res.Warnings)
		if dryRun {
			return nil
		}
		return loader.LoadObservations(ctx, res)
	case ingestion.KindVendor:
		res, err := importer.ImportVendors(f, source, mapping)
		if err != nil {
			return err
		}
		report(logger, kind, res.Total, res.Succeeded, res.Failed, res.Errors, res.Warnings)
		if dryRun {
			return nil
		}
		return loader.LoadVendors(ctx, res)
	case ingestion.KindMarket:
		res, err := importer.ImportMarkets(f, source, mapping)
		if err != nil {
			return err
		}
		report(logger, kind, res.Total, res.Succeeded, res.Failed, res.Errors, res.Warnings)
		if dryRun {
			return nil
		}
		return loader.LoadMarkets(ctx, res)
	case ingestion.KindCenter:
		res, err := importer.ImportCenters(f, source, mapping)
		if err != nil {
			return err
		}
		report(logger, kind, res.Total, res.Succeeded, res.Failed, res.Errors, res.Warnings)
		if dryRun {
			return nil
		}
		return loader.LoadCenters(ctx, res)
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
}

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Show the detected column mapping and sample rows of a CSV file",
		Flags: []cli.Flag{
			kindFlag(),
			fileFlag(),
			mapFlag(),
			&cli.IntFlag{
				Name:  "rows",
				Value: 5,
				Usage: "Number of sample rows",
			},
		},
		Action: func(c *cli.Context) error {
			mapping, err := parseMapping(c.StringSlice("map"))
			if err != nil {
				return err
			}
			f, err := os.Open(c.String("file"))
			if err != nil {
				return fmt.Errorf("open %s: %w", c.String("file"), err)
			}
			defer f.Close()

			importer := ingestion.NewCSVImporter(ingestion.NewValidator())
			p, err := importer.Preview(f, ingestion.Kind(c.String("kind")), c.Int("rows"), mapping)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
}

func apiCommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Fetch pricing observations from a JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Endpoint URL", Required: true},
			&cli.StringFlag{Name: "source", Usage: "Source label (defaults to the URL host)"},
			&cli.StringFlag{Name: "auth", Usage: "Auth type (bearer, api_key)"},
			&cli.StringFlag{Name: "token", Usage: "Bearer token or API key", EnvVars: []string{"PRICEPOINT_API_TOKEN"}},
			&cli.StringFlag{Name: "api-key-header", Usage: "Header for api_key auth", Value: ingestion.DefaultAPIKeyHeader},
			&cli.StringFlag{Name: "data-path", Usage: "Dot path to the record array"},
			&cli.StringSliceFlag{Name: "map", Usage: "Field mapping as field=dot.path, repeatable"},
			&cli.StringFlag{Name: "pagination", Usage: "Pagination (offset, page, cursor)"},
			&cli.IntFlag{Name: "page-size", Value: ingestion.DefaultPageSize, Usage: "Records per page"},
			&cli.IntFlag{Name: "max-pages", Value: ingestion.DefaultMaxPages, Usage: "Page limit"},
			&cli.StringFlag{Name: "cursor-path", Value: ingestion.DefaultCursorPath, Usage: "Dot path to the next cursor"},
			&cli.Float64Flag{Name: "rps", Usage: "Client-side request rate limit (0 disables)"},
			&cli.DurationFlag{Name: "timeout", Value: ingestion.DefaultAPITimeout, Usage: "Per-request timeout"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Validate only, do not store records"},
		},
		Action: runAPI,
	}
}

func runAPI(c *cli.Context) error {
	cfg, logger, err := app.Setup(c)
	if err != nil {
		return err
	}
	mapping, err := parseMapping(c.StringSlice("map"))
	if err != nil {
		return err
	}

	endpoint := ingestion.EndpointConfig{
		URL:               c.String("url"),
		AuthType:          ingestion.AuthType(c.String("auth")),
		AuthToken:         c.String("token"),
		APIKeyHeader:      c.String("api-key-header"),
		Timeout:           c.Duration("timeout"),
		DataPath:          c.String("data-path"),
		FieldMapping:      mapping,
		Pagination:        ingestion.PaginationType(c.String("pagination")),
		PageSize:          c.Int("page-size"),
		CursorPath:        c.String("cursor-path"),
		MaxPages:          c.Int("max-pages"),
		RequestsPerSecond: c.Float64("rps"),
	}

	ctx, stop := app.SignalContext(c.Context, cfg.ShutdownTimeout, logger)
	defer stop()

	metrics := observability.DefaultMetrics
	stores, cleanup, err := app.OpenStores(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	connector := ingestion.NewAPIConnector(ingestion.NewValidator(),
		ingestion.WithAPILogger(logger),
		ingestion.WithAPIMetrics(metrics),
	)
	res, err := connector.FetchVendorPricing(ctx, endpoint)
	if err != nil {
		return err
	}
	if s := c.String("source"); s != "" {
		res.Source = s
	}
	report(logger, ingestion.KindObservation, res.Total, res.Succeeded, res.Failed, res.Errors, res.Warnings)
	if c.Bool("dry-run") {
		return nil
	}

	loader := ingestion.NewLoader(stores.Observations, stores.Reference, metrics, logger)
	return loader.LoadObservations(ctx, res)
}

// parseMapping turns repeated field=column pairs into a mapping.
func parseMapping(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		field, column, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(field) == "" || strings.TrimSpace(column) == "" {
			return nil, fmt.Errorf("malformed mapping %q, want field=column", p)
		}
		out[strings.TrimSpace(field)] = strings.TrimSpace(column)
	}
	return out, nil
}

// report logs the import outcome and the first few row issues.
func report(logger zerolog.Logger, kind ingestion.Kind, total, ok, failed int, errs, warns []ingestion.ValidationError) {
	const shown = 10

	logger.Info().
		Str("kind", string(kind)).
		Int("total", total).
		Int("accepted", ok).
		Int("rejected", failed).
		Int("warnings", len(warns)).
		Msg("import validated")

	for i, e := range errs {
		if i == shown {
			logger.Warn().Int("more", len(errs)-shown).Msg("further row errors omitted")
			break
		}
		logger.Warn().Int("row", e.Row).Str("field", e.Field).Str("value", e.Value).Msg(e.Message)
	}
	for i, w := range warns {
		if i == shown {
			break
		}
		logger.Debug().Int("row", w.Row).Str("field", w.Field).Msg(w.Message)
	}
}
