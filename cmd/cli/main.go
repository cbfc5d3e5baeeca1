package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/revenue-tracker/internal/app"
	"github.com/dvloznov/revenue-tracker/internal/config"
	"github.com/dvloznov/revenue-tracker/internal/export"
	"github.com/dvloznov/revenue-tracker/internal/gcsuploader"
	"github.com/dvloznov/revenue-tracker/internal/ledger"
	"github.com/dvloznov/revenue-tracker/internal/logger"
	"github.com/dvloznov/revenue-tracker/internal/pipeline"
	"github.com/dvloznov/revenue-tracker/internal/reports"
	"github.com/dvloznov/revenue-tracker/internal/session"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "consolidate":
		runConsolidate()
	case "report":
		runReport()
	case "export":
		runExport()
	case "upload":
		runUpload()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Revenue Tracker CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  consolidate  Fetch the extracts for a window and consolidate them into a session")
	fmt.Println("  report       Print a dashboard, ranking or chart as JSON")
	fmt.Println("  export       Write the filtered ledger as CSV or XLSX, locally or to gs://")
	fmt.Println("  upload       Upload a local extract to GCS")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// env is what every command that touches a session needs.
type env struct {
	cfg      *config.Config
	log      zerolog.Logger
	ctx      context.Context
	sessions session.Store
	loader   source.Loader
	closers  []app.Closer
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// sessionFlags are shared by consolidate, report and export.
type sessionFlags struct {
	config  *string
	session *string
	start   *string
	end     *string
	rates   *string
}

func addSessionFlags(fs *flag.FlagSet) sessionFlags {
	return sessionFlags{
		config:  fs.String("config", os.Getenv("REVENUE_CONFIG"), "Path to YAML config"),
		session: fs.String("session", "", "Session id (defaults to refresh.session_id)"),
		start:   fs.String("start", "", "Window start YYYY-MM-DD; consolidates before reporting when set"),
		end:     fs.String("end", "", "Window end YYYY-MM-DD"),
		rates:   fs.String("rates", "", "USD divisors applied to every month, e.g. ARS=40,BRL=4"),
	}
}

func openEnv(sf sessionFlags, timeout time.Duration) (*env, context.CancelFunc) {
	cfg, err := config.Load(*sf.config)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	if *sf.session == "" {
		*sf.session = cfg.Refresh.SessionID
	}
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}).
		With().Str("session_id", *sf.session).Logger()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = logger.WithContext(ctx, log)

	e := &env{cfg: cfg, log: log, ctx: ctx}
	sessions, closeSessions, err := app.OpenSessions(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	e.sessions = sessions
	e.closers = append(e.closers, closeSessions)

	if *sf.start != "" {
		loader, closeLoader, err := app.OpenLoader(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create extract loader")
		}
		e.loader = loader
		e.closers = append(e.closers, closeLoader)
	}
	return e, cancel
}

// state consolidates the window first when one is given, then loads the
// queried session.
func (e *env) state(sf sessionFlags) *session.State {
	if *sf.start != "" {
		w, err := source.ParseWindow(*sf.start, *sf.end)
		if err != nil {
			e.log.Fatal().Err(err).Msg("Invalid window")
		}
		if _, err := pipeline.Consolidate(e.ctx, e.loader, e.sessions, *sf.session, w); err != nil {
			e.log.Fatal().Err(err).Msg("Consolidation failed")
		}
	}
	st, err := e.sessions.Load(e.ctx, *sf.session)
	if err != nil || !st.Queried {
		e.log.Fatal().Err(err).Msg("No consolidated data for this session; pass -start and -end")
	}
	return st
}

// conversion picks the rates in effect: explicit flag, then the session,
// then the configured defaults.
func conversion(flagRates string, st *session.State, defaults map[string]float64) (ledger.Conversion, error) {
	if flagRates != "" {
		rates, err := config.ParseRates(flagRates)
		if err != nil {
			return nil, err
		}
		return ledger.FlatConversion(rates, ledger.Months(st.Ledger)...), nil
	}
	return st.EffectiveConversion(defaults), nil
}

func runConsolidate() {
	fs := flag.NewFlagSet("consolidate", flag.ExitOnError)
	sf := addSessionFlags(fs)
	fs.Parse(os.Args[2:])

	if *sf.start == "" || *sf.end == "" {
		fmt.Fprintln(os.Stderr, "Usage: cli consolidate -start YYYY-MM-DD -end YYYY-MM-DD [-session ID]")
		os.Exit(1)
	}

	e, cancel := openEnv(sf, 10*time.Minute)
	defer cancel()
	defer e.close()

	st := e.state(sf)
	if st.Stats != nil {
		e.log.Info().
			Int("rows", st.Stats.Rows).
			Int("corrections_folded", st.Stats.Merge.Folded).
			Int("unrouted", st.Stats.Join.Unrouted).
			Int("ambiguous_keys", st.Stats.Join.AmbiguousKeys).
			Msg("Consolidation completed")
	}
	fmt.Printf("Consolidated %d rows for %s..%s into session %q.\n",
		len(st.Ledger), st.Window.Start, st.Window.End, *sf.session)
}

func runReport() {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	sf := addSessionFlags(fs)
	kind := fs.String("kind", "dashboard", "dashboard, organizers, refunds, events, payment_processor or sales_flag")
	metric := fs.String("metric", reports.MetricGTV, "Chart metric: gtv, gtf or organizers")
	fs.Parse(os.Args[2:])

	e, cancel := openEnv(sf, 10*time.Minute)
	defer cancel()
	defer e.close()

	st := e.state(sf)
	conv, err := conversion(*sf.rates, st, e.cfg.Rates)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Invalid rates")
	}
	if err := renderReport(os.Stdout, *kind, *metric, st.Ledger, conv, e.cfg.Markets); err != nil {
		e.log.Fatal().Err(err).Msg("Report failed")
	}
}

func renderReport(w io.Writer, kind, metric string, l ledger.Ledger, conv ledger.Conversion, markets reports.Markets) error {
	var out interface{}
	switch kind {
	case "dashboard":
		out = reports.Dashboard(l, conv, markets)
	case "organizers":
		out = reports.TopOrganizers(l, conv, markets)
	case "refunds":
		out = reports.TopOrganizersByRefund(l, conv, markets)
	case "events":
		out = reports.TopEvents(l, conv, markets)
	case "payment_processor":
		out = reports.PaymentProcessorChart(l, metric, conv, markets)
	case "sales_flag":
		out = reports.SalesFlagChart(l, metric, conv, markets)
	default:
		return fmt.Errorf("unknown report kind %q", kind)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	sf := addSessionFlags(fs)
	outPath := fs.String("out", "", "Output file; .csv or .xlsx, local path or gs:// URI")
	groupBy := fs.String("groupby", "", "Optional grouping: day, week, month, organizer, event, currency, ... or a comma-separated column list")
	filters := fs.String("filter", "", "Filters as key=value pairs separated by commas, e.g. currency=ARS,email=x@y.z")
	fs.Parse(os.Args[2:])

	if *outPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: cli export -out FILE.csv|FILE.xlsx [-start ... -end ...] [-groupby G] [-filter k=v,...]")
		os.Exit(1)
	}

	e, cancel := openEnv(sf, 10*time.Minute)
	defer cancel()
	defer e.close()

	st := e.state(sf)
	conv, err := conversion(*sf.rates, st, e.cfg.Rates)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Invalid rates")
	}

	var buf bytes.Buffer
	if err := writeExport(&buf, *outPath, *filters, *groupBy, st.Ledger, conv); err != nil {
		e.log.Fatal().Err(err).Msg("Export failed")
	}

	if strings.HasPrefix(*outPath, "gs://") {
		bucket, object, err := gcsuploader.ParseGCSURI(*outPath)
		if err != nil {
			e.log.Fatal().Err(err).Msg("Invalid GCS URI")
		}
		if err := gcsuploader.UploadBytes(e.ctx, bucket, object, contentType(*outPath), buf.Bytes()); err != nil {
			e.log.Fatal().Err(err).Msg("Upload failed")
		}
	} else if err := os.WriteFile(*outPath, buf.Bytes(), 0o644); err != nil {
		e.log.Fatal().Err(err).Msg("Failed to write export")
	}

	fmt.Printf("Exported to %s\n", *outPath)
}

// parseFilters turns "k=v,k2=v2" into query parameters.
func parseFilters(s string) (map[string]string, error) {
	params := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q: want key=value", pair)
		}
		params[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return params, nil
}

func writeExport(w io.Writer, path, filters, groupBy string, l ledger.Ledger, conv ledger.Conversion) error {
	params, err := parseFilters(filters)
	if err != nil {
		return err
	}
	c, err := ledger.ParseCriteria(params)
	if err != nil {
		return err
	}
	var by *ledger.GroupKey
	if groupBy != "" {
		k, err := ledger.ParseGroupKey(groupBy)
		if err != nil {
			return err
		}
		by = &k
	}
	listing, err := reports.Transactions(l, c, conv, by)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		if listing.Grouped != nil {
			return export.WriteGroupedCSV(w, *listing.Grouped)
		}
		return export.WriteCSV(w, listing.Rows)
	case ".xlsx":
		if listing.Grouped != nil {
			return export.WriteGroupedXLSX(w, *listing.Grouped)
		}
		return export.WriteXLSX(w, listing.Rows)
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
}

func contentType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

func runUpload() {
	log := logger.New()

	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	prefix := fs.String("prefix", "", "Object prefix, e.g. extracts/2018-08")
	filePath := fs.String("file", "", "Path to local extract CSV")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH [-prefix DIR]")
	}

	objectName := filepath.Base(*filePath)
	if *prefix != "" {
		objectName = strings.TrimSuffix(*prefix, "/") + "/" + objectName
	}

	ctx := logger.WithContext(context.Background(), log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcsuploader.UploadFile(ctx, *bucketName, objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, objectName)
}
