// Package worker runs background probes against the TMB API so provider
// health stays current without user traffic.
package worker

import (
	"fmt"
	"time"
)

// Probe operations.
const (
	OpSubwayLines  = "subway_lines"
	OpLineStations = "line_stations"
	OpBusStops     = "bus_stops"
	OpBusStopTimes = "bus_stop_times"
)

// ProbeTarget is one upstream call made by a probe run.
type ProbeTarget struct {
	// Operation is one of the Op* constants.
	Operation string `json:"operation"`

	// Code is the line or stop code for operations that take one.
	Code int `json:"code,omitempty"`
}

// String returns a label such as "line_stations/1".
func (t ProbeTarget) String() string {
	switch t.Operation {
	case OpLineStations, OpBusStopTimes:
		return fmt.Sprintf("%s/%d", t.Operation, t.Code)
	default:
		return t.Operation
	}
}

// ProbeConfig holds configuration for the probe job.
type ProbeConfig struct {
	// Targets are the calls made on every run.
	// If empty, uses DefaultProbeTargets.
	Targets []ProbeTarget

	// Concurrency is the number of concurrent probe calls.
	// Default: 2
	Concurrency int

	// Timeout bounds each probe call.
	// Default: 15 seconds
	Timeout time.Duration
}

// DefaultProbeConfig returns the default probe configuration.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Targets:     DefaultProbeTargets(),
		Concurrency: 2,
		Timeout:     15 * time.Second,
	}
}

// DefaultProbeTargets covers the metro and iBus endpoints. The full bus stop
// list is left out; it is several megabytes per call.
func DefaultProbeTargets() []ProbeTarget {
	return []ProbeTarget{
		{Operation: OpSubwayLines},
		{Operation: OpLineStations, Code: 1}, // L1
		{Operation: OpBusStopTimes, Code: 108},
	}
}

// withDefaults fills unset fields from DefaultProbeConfig.
func (c ProbeConfig) withDefaults() ProbeConfig {
	def := DefaultProbeConfig()
	if len(c.Targets) == 0 {
		c.Targets = def.Targets
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
