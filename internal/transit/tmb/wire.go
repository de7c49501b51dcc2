package tmb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb/geojson"

	"github.com/tmbmaps/tmbmaps/internal/transit"
)

// Errors returned by the Fetch* operations.
var (
	// ErrUnexpectedStatus matches any *StatusError.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrDecode is returned when a 2xx body is malformed or lacks a required field.
	ErrDecode = errors.New("decoding response")
)

// StatusError reports a non-2xx response from the TMB API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// Is reports whether target is ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Required keys are pointers so that an absent key fails validation while an
// explicit zero value does not.
var validate = validator.New(validator.WithRequiredStructEnabled())

// wireProperties converts a decoded properties object to its domain type.
type wireProperties[T any] interface {
	toDomain() T
}

type featureCollection[P any] struct {
	Features []feature[P] `json:"features" validate:"required,dive"`
}

type feature[P any] struct {
	Geometry   *geojson.Geometry `json:"geometry" validate:"required"`
	Properties *P                `json:"properties" validate:"required"`
}

func decodeFeatures[T any, P wireProperties[T]](r io.Reader) ([]transit.Feature[T], error) {
	var fc featureCollection[P]
	if err := decodeAndValidate(r, &fc); err != nil {
		return nil, err
	}

	features := make([]transit.Feature[T], 0, len(fc.Features))
	for _, f := range fc.Features {
		features = append(features, transit.Feature[T]{
			Geometry:   f.Geometry.Geometry(),
			Properties: (*f.Properties).toDomain(),
		})
	}
	return features, nil
}

func decodeBusStopTimes(r io.Reader) ([]transit.BusStopTimesContent, error) {
	var resp busStopTimesResponse
	if err := decodeAndValidate(r, &resp); err != nil {
		return nil, err
	}

	times := make([]transit.BusStopTimesContent, 0, len(resp.Data.IBus))
	for _, t := range resp.Data.IBus {
		times = append(times, transit.BusStopTimesContent{
			Line:          *t.Line,
			RemainingTime: *t.RemainingTime,
		})
	}
	return times, nil
}

func decodeAndValidate(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// TMB API response structures.

type subwayLineProperties struct {
	LineCode *int    `json:"CODI_LINIA" validate:"required"`
	LineName *string `json:"NOM_LINIA" validate:"required"`
}

func (p subwayLineProperties) toDomain() transit.SubwayLineProperties {
	return transit.SubwayLineProperties{
		LineCode: *p.LineCode,
		LineName: *p.LineName,
	}
}

type subwayStationProperties struct {
	StationName  *string `json:"NOM_ESTACIO" validate:"required"`
	StationOrder *int    `json:"ORDRE_ESTACIO" validate:"required"`
}

func (p subwayStationProperties) toDomain() transit.SubwayStationProperties {
	return transit.SubwayStationProperties{
		StationName:  *p.StationName,
		StationOrder: *p.StationOrder,
	}
}

type busStopProperties struct {
	StopCode *int    `json:"CODI_PARADA" validate:"required"`
	StopName *string `json:"NOM_PARADA" validate:"required"`
}

func (p busStopProperties) toDomain() transit.BusStopProperties {
	return transit.BusStopProperties{
		StopCode: *p.StopCode,
		StopName: *p.StopName,
	}
}

type busStopTimesResponse struct {
	Status *string           `json:"status" validate:"required"`
	Data   *busStopTimesData `json:"data" validate:"required"`
}

type busStopTimesData struct {
	IBus []busStopTimesEntry `json:"ibus" validate:"required,dive"`
}

type busStopTimesEntry struct {
	Line          *string `json:"line" validate:"required"`
	RemainingTime *int    `json:"t-in-min" validate:"required"`
}
