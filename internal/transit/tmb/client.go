// Package tmb is the client for the TMB (Transports Metropolitans de
// Barcelona) open data API: metro lines and stations, bus stops, and iBus
// arrival times.
package tmb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tmbmaps/tmbmaps/internal/provider/resilience"
	"github.com/tmbmaps/tmbmaps/internal/telemetry"
	"github.com/tmbmaps/tmbmaps/internal/transit"
)

const (
	// ProviderName identifies this transit provider.
	ProviderName = "tmb"

	// DefaultBaseURL is the TMB API base URL. Every path below is relative to it.
	DefaultBaseURL = "https://api.tmb.cat/v1"

	tracerName = "github.com/tmbmaps/tmbmaps/internal/transit/tmb"
)

// Endpoint paths.
const (
	subwayLinesPath    = "/transit/linies/metro"
	subwayStationsPath = "/transit/linies/metro/%d/estacions"
	busStopsPath       = "/transit/parades"
	busStopTimesPath   = "/ibus/stops/%d"
)

// Operation names used in logs, spans and metrics.
const (
	OpGetSubwayLines           = "GetSubwayLines"
	OpGetStationFromSubwayLine = "GetStationFromSubwayLine"
	OpGetBusStops              = "GetBusStops"
	OpGetTimesFromBusStop      = "GetTimesFromBusStop"
)

// Doer executes HTTP requests. *http.Client and *resilience.Client implement it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the TMB client.
type ClientConfig struct {
	// AppID and AppKey are the TMB developer credentials, sent as the
	// app_id and app_key query parameters.
	AppID  string
	AppKey string

	// BaseURL is the API base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the transport to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient Doer

	// Logger for client operations.
	Logger zerolog.Logger

	// Metrics records per-operation outcomes (optional).
	Metrics *telemetry.ProviderMetrics

	// Registry receives success/failure per call (optional).
	Registry *resilience.Registry

	// Tracer for per-operation spans (optional, defaults to the global tracer).
	Tracer trace.Tracer
}

// Client is a TMB API client.
//
// The Get* operations never fail: any transport, HTTP or decoding error
// yields an empty, non-nil slice. The Fetch* variants return the error.
// Client holds no mutable state and is safe for concurrent use.
type Client struct {
	appID      string
	appKey     string
	baseURL    string
	httpClient Doer
	logger     zerolog.Logger
	metrics    *telemetry.ProviderMetrics
	registry   *resilience.Registry
	tracer     trace.Tracer
}

// NewClient creates a new TMB client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rcfg := resilience.DefaultClientConfig(ProviderName)
		rcfg.CircuitBreaker.OnStateChange = resilience.LogStateChanges(cfg.Logger)
		rcfg.Registry = cfg.Registry
		rcfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(rcfg)
	}

	if cfg.Registry != nil && cfg.Registry.GetHealth(ProviderName) == nil {
		breaker, _ := httpClient.(resilience.BreakerReporter)
		cfg.Registry.Register(ProviderName, breaker)
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Client{
		appID:      cfg.AppID,
		appKey:     cfg.AppKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
		metrics:    cfg.Metrics,
		registry:   cfg.Registry,
		tracer:     tracer,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetSubwayLines returns all metro lines, or an empty slice on any failure.
func (c *Client) GetSubwayLines(ctx context.Context) []transit.SubwayLine {
	return orEmpty(c.FetchSubwayLines(ctx))
}

// GetStationFromSubwayLine returns the stations of a metro line, or an empty
// slice on any failure. Stations are returned in API order; callers sort by
// StationOrder.
func (c *Client) GetStationFromSubwayLine(ctx context.Context, lineCode int) []transit.SubwayStation {
	return orEmpty(c.FetchStationsFromSubwayLine(ctx, lineCode))
}

// GetBusStops returns all bus stops, or an empty slice on any failure.
func (c *Client) GetBusStops(ctx context.Context) []transit.BusStop {
	return orEmpty(c.FetchBusStops(ctx))
}

// GetTimesFromBusStop returns upcoming arrivals at a bus stop, or an empty
// slice on any failure.
func (c *Client) GetTimesFromBusStop(ctx context.Context, stopCode int) []transit.BusStopTimesContent {
	return orEmpty(c.FetchTimesFromBusStop(ctx, stopCode))
}

// FetchSubwayLines is GetSubwayLines with the error exposed.
func (c *Client) FetchSubwayLines(ctx context.Context) ([]transit.SubwayLine, error) {
	return fetchFeatures[transit.SubwayLineProperties, subwayLineProperties](
		ctx, c, OpGetSubwayLines, subwayLinesPath)
}

// FetchStationsFromSubwayLine is GetStationFromSubwayLine with the error exposed.
func (c *Client) FetchStationsFromSubwayLine(ctx context.Context, lineCode int) ([]transit.SubwayStation, error) {
	return fetchFeatures[transit.SubwayStationProperties, subwayStationProperties](
		ctx, c, OpGetStationFromSubwayLine, fmt.Sprintf(subwayStationsPath, lineCode),
		attribute.Int("tmb.line_code", lineCode))
}

// FetchBusStops is GetBusStops with the error exposed.
func (c *Client) FetchBusStops(ctx context.Context) ([]transit.BusStop, error) {
	return fetchFeatures[transit.BusStopProperties, busStopProperties](
		ctx, c, OpGetBusStops, busStopsPath)
}

// FetchTimesFromBusStop is GetTimesFromBusStop with the error exposed.
func (c *Client) FetchTimesFromBusStop(ctx context.Context, stopCode int) ([]transit.BusStopTimesContent, error) {
	var times []transit.BusStopTimesContent
	err := c.get(ctx, OpGetTimesFromBusStop, fmt.Sprintf(busStopTimesPath, stopCode),
		func(body io.Reader) (int, error) {
			var err error
			times, err = decodeBusStopTimes(body)
			return len(times), err
		},
		attribute.Int("tmb.stop_code", stopCode))
	if err != nil {
		return nil, err
	}
	return times, nil
}

func fetchFeatures[T any, P wireProperties[T]](ctx context.Context, c *Client, op, path string, attrs ...attribute.KeyValue) ([]transit.Feature[T], error) {
	var features []transit.Feature[T]
	err := c.get(ctx, op, path, func(body io.Reader) (int, error) {
		var err error
		features, err = decodeFeatures[T, P](body)
		return len(features), err
	}, attrs...)
	if err != nil {
		return nil, err
	}
	return features, nil
}

// get issues an authenticated GET for path and hands a 2xx body to decode.
// decode reports the number of records it produced.
func (c *Client) get(ctx context.Context, op, path string, decode func(io.Reader) (int, error), attrs ...attribute.KeyValue) (err error) {
	start := time.Now()
	items := 0

	ctx, span := c.tracer.Start(ctx, "tmb."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs,
			attribute.String("provider.name", ProviderName),
			attribute.String("url.path", path),
		)...),
	)
	defer func() {
		c.finish(ctx, span, op, path, items, time.Since(start), err)
	}()

	endpoint, err := c.buildURL(path)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	items, err = decode(resp.Body)
	return err
}

// buildURL joins the base URL with path and attaches the credentials.
func (c *Client) buildURL(path string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}

	u := base.JoinPath(path)
	q := u.Query()
	q.Set("app_id", c.appID)
	q.Set("app_key", c.appKey)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *Client) finish(ctx context.Context, span trace.Span, op, path string, items int, duration time.Duration, err error) {
	defer span.End()

	outcome := classify(err, items)
	span.SetAttributes(
		attribute.String("provider.outcome", outcome),
		attribute.Int("tmb.items", items),
	)
	c.metrics.RecordRequest(ctx, ProviderName, op, outcome, items, duration)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		// A caller that gave up says nothing about TMB's health.
		if c.registry != nil && ctx.Err() == nil {
			c.registry.RecordFailure(ProviderName, err)
		}
		c.logger.Warn().
			Err(err).
			Str("operation", op).
			Str("path", path).
			Str("outcome", outcome).
			Dur("duration", duration).
			Msg("tmb request failed, returning empty result")
		return
	}

	if c.registry != nil {
		c.registry.RecordSuccess(ProviderName)
	}
	c.logger.Debug().
		Str("operation", op).
		Str("path", path).
		Int("items", items).
		Dur("duration", duration).
		Msg("tmb request completed")
}

func classify(err error, items int) string {
	var statusErr *StatusError
	switch {
	case err == nil && items == 0:
		return telemetry.OutcomeEmpty
	case err == nil:
		return telemetry.OutcomeOK
	case errors.As(err, &statusErr):
		return telemetry.OutcomeHTTPError
	case errors.Is(err, ErrDecode):
		return telemetry.OutcomeDecodeFail
	default:
		return telemetry.OutcomeTransport
	}
}

func orEmpty[T any](items []T, err error) []T {
	if err != nil || items == nil {
		return []T{}
	}
	return items
}
