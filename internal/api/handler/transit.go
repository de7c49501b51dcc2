package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tmbmaps/tmbmaps/internal/api/models"
	"github.com/tmbmaps/tmbmaps/internal/api/response"
	"github.com/tmbmaps/tmbmaps/internal/provider/resilience"
	"github.com/tmbmaps/tmbmaps/internal/transit"
)

// TransitProvider fetches TMB transit data. The error-returning variants let
// the gateway tell an upstream failure apart from an empty result.
// *tmb.Client implements it.
type TransitProvider interface {
	FetchSubwayLines(ctx context.Context) ([]transit.SubwayLine, error)
	FetchStationsFromSubwayLine(ctx context.Context, lineCode int) ([]transit.SubwayStation, error)
	FetchBusStops(ctx context.Context) ([]transit.BusStop, error)
	FetchTimesFromBusStop(ctx context.Context, stopCode int) ([]transit.BusStopTimesContent, error)
}

// TransitHandler handles metro and bus endpoints.
type TransitHandler struct {
	provider TransitProvider
}

// NewTransitHandler creates a new TransitHandler.
func NewTransitHandler(provider TransitProvider) *TransitHandler {
	return &TransitHandler{provider: provider}
}

// ListSubwayLines handles GET /v1/metro/lines.
// ?sort=code orders lines by code; ?geometry=polyline adds encoded polylines.
func (h *TransitHandler) ListSubwayLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.provider.FetchSubwayLines(r.Context())
	if err != nil {
		upstreamError(w, r, err)
		return
	}

	if r.URL.Query().Get("sort") == "code" {
		lines = transit.SortLinesByCode(lines)
	}

	response.GeoJSON(w, r, models.NewFeatureCollection(lines, wantPolylines(r), models.SubwayLineFrom))
}

// ListLineStations handles GET /v1/metro/lines/{lineCode}/stations.
// Stations are ordered along the line unless ?sort=none.
func (h *TransitHandler) ListLineStations(w http.ResponseWriter, r *http.Request) {
	lineCode, ok := intParam(w, r, "lineCode")
	if !ok {
		return
	}

	stations, err := h.provider.FetchStationsFromSubwayLine(r.Context(), lineCode)
	if err != nil {
		upstreamError(w, r, err)
		return
	}

	if r.URL.Query().Get("sort") != "none" {
		stations = transit.SortStationsByOrder(stations)
	}

	response.GeoJSON(w, r, models.NewFeatureCollection(stations, wantPolylines(r), models.SubwayStationFrom))
}

// ListBusStops handles GET /v1/bus/stops. ?sort=name orders stops by name.
func (h *TransitHandler) ListBusStops(w http.ResponseWriter, r *http.Request) {
	stops, err := h.provider.FetchBusStops(r.Context())
	if err != nil {
		upstreamError(w, r, err)
		return
	}

	if r.URL.Query().Get("sort") == "name" {
		stops = transit.SortBusStopsByName(stops)
	}

	response.GeoJSON(w, r, models.NewFeatureCollection(stops, false, models.BusStopFrom))
}

// GetBusStopTimes handles GET /v1/bus/stops/{stopCode}/times.
// ?include=stop also resolves the stop from the stop list.
func (h *TransitHandler) GetBusStopTimes(w http.ResponseWriter, r *http.Request) {
	stopCode, ok := intParam(w, r, "stopCode")
	if !ok {
		return
	}

	var stop *models.BusStop
	if r.URL.Query().Get("include") == "stop" {
		stops, err := h.provider.FetchBusStops(r.Context())
		if err != nil {
			upstreamError(w, r, err)
			return
		}
		found, ok := transit.FindBusStop(stops, stopCode)
		if !ok {
			response.NotFound(w, r, "bus stop "+strconv.Itoa(stopCode)+" not found")
			return
		}
		props := models.BusStopFrom(found.Properties)
		stop = &props
	}

	times, err := h.provider.FetchTimesFromBusStop(r.Context(), stopCode)
	if err != nil {
		upstreamError(w, r, err)
		return
	}

	result := models.NewBusStopTimes(stopCode, times)
	result.Stop = stop
	response.JSON(w, r, http.StatusOK, result)
}

func wantPolylines(r *http.Request) bool {
	return r.URL.Query().Get("geometry") == "polyline"
}

// intParam parses an integer URL parameter, writing a 400 when it is invalid.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		response.BadRequest(w, r, name+" must be an integer", []models.FieldError{
			{Field: name, Message: "must be an integer", Code: "INVALID_FORMAT"},
		})
		return 0, false
	}
	return value, true
}

// statusClientClosedRequest is the nginx convention for a request the
// caller abandoned before the response was ready.
const statusClientClosedRequest = 499

// upstreamError maps a failed TMB call to a problem response. The client has
// already logged the failure.
func upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		w.WriteHeader(statusClientClosedRequest)
	case errors.Is(err, resilience.ErrCircuitOpen):
		w.Header().Set("Retry-After", "60")
		response.ServiceUnavailable(w, r, "TMB is temporarily unavailable")
	default:
		response.BadGateway(w, r, "TMB request failed")
	}
}
