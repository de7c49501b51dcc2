// Command tmbctl queries the TMB transit API from the command line and prints
// the result as GeoJSON or JSON.
//
// Usage:
//
//	tmbctl [flags] lines
//	tmbctl [flags] stations <lineCode>
//	tmbctl [flags] stops
//	tmbctl [flags] times <stopCode>
//
// Upstream failures are logged to stderr and print an empty result; the exit
// status is 0 either way.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tmbmaps/tmbmaps/internal/api/models"
	"github.com/tmbmaps/tmbmaps/internal/config"
	"github.com/tmbmaps/tmbmaps/internal/logging"
	"github.com/tmbmaps/tmbmaps/internal/provider/resilience"
	"github.com/tmbmaps/tmbmaps/internal/transit"
	"github.com/tmbmaps/tmbmaps/internal/transit/tmb"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	sort      bool
	polyline  bool
	withStop  bool
	envFile   string
	logFormat string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tmbctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: tmbctl [flags] lines | stations <lineCode> | stops | times <stopCode>")
		fs.PrintDefaults()
	}

	var opts options
	fs.BoolVar(&opts.sort, "sort", false, "sort lines by code or stops by name")
	fs.BoolVar(&opts.polyline, "polyline", false, "add encoded polylines to line geometries")
	fs.BoolVar(&opts.withStop, "with-stop", false, "times: also look the stop up in the stop list")
	fs.StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file")
	fs.StringVar(&opts.logFormat, "log-format", "console", "log format on stderr (console or json)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load(opts.envFile)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	log, closer, err := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: opts.logFormat,
		Output: stderr,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer closer.Close()

	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("TMB configuration incomplete")
	}

	client := newClient(cfg, log)

	result, err := execute(ctx, client, fs.Args(), opts)
	if err != nil {
		if err != errUsage { //nolint:errorlint // a bare usage error adds nothing to the usage text
			fmt.Fprintln(stderr, err)
		}
		if errors.Is(err, errUsage) {
			fs.Usage()
		}
		return exitUsage
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Error().Err(err).Msg("writing output")
		return exitError
	}
	return exitOK
}

func newClient(cfg config.Config, log zerolog.Logger) *tmb.Client {
	transportCfg := resilience.DefaultClientConfig(tmb.ProviderName)
	transportCfg.Timeout = cfg.TMBTimeout
	transportCfg.MaxRetries = cfg.TMBMaxRetries
	transportCfg.Logger = log

	return tmb.NewClient(tmb.ClientConfig{
		AppID:      cfg.TMBAppID,
		AppKey:     cfg.TMBAppKey,
		BaseURL:    cfg.TMBBaseURL,
		HTTPClient: resilience.NewClient(transportCfg),
		Logger:     log,
	})
}

// execute runs one subcommand against the fail-soft client operations.
func execute(ctx context.Context, client *tmb.Client, args []string, opts options) (any, error) {
	if len(args) == 0 {
		return nil, errUsage
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "lines":
		if len(rest) != 0 {
			return nil, errUsage
		}
		lines := client.GetSubwayLines(ctx)
		if opts.sort {
			lines = transit.SortLinesByCode(lines)
		}
		return models.NewFeatureCollection(lines, opts.polyline, models.SubwayLineFrom), nil

	case "stations":
		lineCode, err := codeArg("lineCode", rest)
		if err != nil {
			return nil, err
		}
		stations := transit.SortStationsByOrder(client.GetStationFromSubwayLine(ctx, lineCode))
		return models.NewFeatureCollection(stations, opts.polyline, models.SubwayStationFrom), nil

	case "stops":
		if len(rest) != 0 {
			return nil, errUsage
		}
		stops := client.GetBusStops(ctx)
		if opts.sort {
			stops = transit.SortBusStopsByName(stops)
		}
		return models.NewFeatureCollection(stops, false, models.BusStopFrom), nil

	case "times":
		stopCode, err := codeArg("stopCode", rest)
		if err != nil {
			return nil, err
		}
		result := models.NewBusStopTimes(stopCode, client.GetTimesFromBusStop(ctx, stopCode))
		if opts.withStop {
			if stop, ok := transit.FindBusStop(client.GetBusStops(ctx), stopCode); ok {
				props := models.BusStopFrom(stop.Properties)
				result.Stop = &props
			}
		}
		return result, nil

	default:
		return nil, fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func codeArg(name string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	code, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, args[0])
	}
	return code, nil
}
