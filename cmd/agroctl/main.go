// Command agroctl runs one-off collections and analyses against the
// configured polygon.
//
// Usage:
//
//	agroctl current              current weather, soil and vegetation
//	agroctl trend                vegetation index trend
//	agroctl irrigation           irrigation recommendation
//	agroctl stress               stress findings
//	agroctl report [-save]       full field report
//	agroctl export [-out FILE]   assessment as JSON
//	agroctl polygons             polygons registered under the API key
//	agroctl collect              one full run into every enabled sink
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/agro-monitor/internal/adapter/agro"
	"github.com/couchcryptid/agro-monitor/internal/adapter/filestore"
	"github.com/couchcryptid/agro-monitor/internal/app"
	"github.com/couchcryptid/agro-monitor/internal/config"
	"github.com/couchcryptid/agro-monitor/internal/domain"
	"github.com/couchcryptid/agro-monitor/internal/observability"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "agroctl:", err)
		}
		os.Exit(1)
	}
}

type command struct {
	name   string
	help   string
	action func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"current", "current weather, soil and vegetation", cmdCurrent},
	{"trend", "vegetation index trend", cmdTrend},
	{"irrigation", "irrigation recommendation", cmdIrrigation},
	{"stress", "stress findings", cmdStress},
	{"report", "full field report [-save]", cmdReport},
	{"export", "assessment as JSON [-out FILE]", cmdExport},
	{"polygons", "polygons registered under the API key", cmdPolygons},
	{"collect", "one full run into every enabled sink", cmdCollect},
}

// env carries what every command needs.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	client  *agro.Client
	clock   clockwork.Clock
	out     io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(stderr)
		return errUsage
	}
	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return errUsage
	}

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.name != "polygons" {
		if err := cfg.RequirePolygon(); err != nil {
			return err
		}
	}

	// Diagnostics go to stderr so command output stays pipeable.
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: observability.ParseLevel(cfg.LogLevel)}))
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	e := &env{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		client:  app.NewClient(cfg, metrics, logger),
		clock:   clockwork.NewRealClock(),
		out:     stdout,
	}
	return cmd.action(ctx, e, args[1:])
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: agroctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.name, c.help)
	}
}

// assess collects and analyzes without touching any sink.
func (e *env) assess(ctx context.Context) (domain.Assessment, error) {
	return app.NewPipeline(e.cfg, e.client, nil, e.logger, e.metrics, e.clock).Assess(ctx)
}

func noFlags(name string, args []string) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return fs.Parse(args)
}

func cmdCurrent(ctx context.Context, e *env, args []string) error {
	if err := noFlags("current", args); err != nil {
		return err
	}
	a, err := e.assess(ctx)
	if err != nil {
		return err
	}
	printCurrent(e.out, a.Snapshot)
	return nil
}

func cmdTrend(ctx context.Context, e *env, args []string) error {
	if err := noFlags("trend", args); err != nil {
		return err
	}
	a, err := e.assess(ctx)
	if err != nil {
		return err
	}
	printTrend(e.out, a.Analysis.Trend)
	return nil
}

func cmdIrrigation(ctx context.Context, e *env, args []string) error {
	if err := noFlags("irrigation", args); err != nil {
		return err
	}
	a, err := e.assess(ctx)
	if err != nil {
		return err
	}
	printIrrigation(e.out, a.Analysis.Irrigation)
	return nil
}

func cmdStress(ctx context.Context, e *env, args []string) error {
	if err := noFlags("stress", args); err != nil {
		return err
	}
	a, err := e.assess(ctx)
	if err != nil {
		return err
	}
	printStress(e.out, a.Analysis.Stress)
	return nil
}

func cmdReport(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	save := fs.Bool("save", false, "also write the report under DATA_DIR")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := e.assess(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(e.out, a.Report)

	if *save {
		files, err := filestore.New(e.cfg.DataDir)
		if err != nil {
			return err
		}
		path, err := files.SaveReport(a)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "\nReport saved to %s\n", path)
	}
	return nil
}

func cmdExport(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("out", "", "output file (default DATA_DIR/export_<polygon>_<time>.json)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := e.assess(ctx)
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = filepath.Join(e.cfg.DataDir, fmt.Sprintf("export_%s_%s.json",
			a.Analysis.PolygonID, a.Analysis.AnalyzedAt.UTC().Format("20060102_150405")))
	}
	if err := filestore.ExportJSON(path, a); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Exported %s to %s\n", a.Analysis.ID, path)
	return nil
}

func cmdPolygons(ctx context.Context, e *env, args []string) error {
	if err := noFlags("polygons", args); err != nil {
		return err
	}
	polygons, err := agro.ListPolygons(ctx, e.client, app.Normalizer(e.cfg))
	if err != nil {
		return err
	}
	printPolygons(e.out, polygons)
	return nil
}

func cmdCollect(ctx context.Context, e *env, args []string) error {
	if err := noFlags("collect", args); err != nil {
		return err
	}
	sinks, err := app.OpenSinks(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer sinks.Close()

	p := app.NewPipeline(e.cfg, e.client, sinks.Loaders, e.logger, e.metrics, e.clock)
	a, err := p.RunOnce(ctx)
	if a.Analysis.ID != "" {
		fmt.Fprintf(e.out, "Run %s: irrigation %s (score %d), trend %s, %d stress finding(s), %d sink(s)\n",
			a.Analysis.ID, a.Analysis.Irrigation.Urgency, a.Analysis.Irrigation.Score,
			a.Analysis.Trend.Trend, len(a.Analysis.Stress), len(sinks.Loaders))
	}
	return err
}
