// Package handler provides HTTP handlers for the transit gateway.
package handler

import (
	"net/http"
	"time"

	"github.com/tmbmaps/tmbmaps/internal/api/models"
	"github.com/tmbmaps/tmbmaps/internal/api/response"
	"github.com/tmbmaps/tmbmaps/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler. registry may be nil, in which case
// the service never reports ready.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. The gateway is ready once a
// provider is registered and no provider circuit is open.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	}

	if h.registry == nil || h.registry.ProviderCount() == 0 {
		health.Status = models.HealthStatusFail
		health.Details = map[string]any{"reason": "no providers registered"}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	var open []string
	for _, p := range h.registry.GetAllHealth() {
		if p.IsUnhealthy() {
			open = append(open, p.Name)
		}
	}
	if len(open) > 0 {
		health.Status = models.HealthStatusFail
		health.Details = map[string]any{"openCircuits": open}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - per-provider health.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusFail,
		Time:      models.Timestamp(h.now()),
		Version:   h.version,
		BuildTime: h.buildTime,
		Providers: []models.ProviderStatus{},
	}

	if h.registry != nil {
		for _, p := range h.registry.GetAllHealth() {
			status.Providers = append(status.Providers, providerStatus(p))
		}
	}
	status.Status = overallStatus(status.Providers)

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(p *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:     p.Name,
		Status:       models.HealthStatusOK,
		CircuitState: p.CircuitState.String(),
		Requests:     p.Counts.Requests,
		Failures:     p.Counts.ConsecutiveFailures,
	}
	switch {
	case p.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case p.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if p.LastSuccessAt != nil {
		ps.LastSuccessAt = models.NewTimestamp(*p.LastSuccessAt)
	}
	if p.LastFailureAt != nil {
		ps.LastFailureAt = models.NewTimestamp(*p.LastFailureAt)
	}
	if p.LastError != "" {
		msg := p.LastError
		ps.Message = &msg
	}
	return ps
}

// overallStatus is OK when every provider is OK, FAIL when none is usable,
// and DEGRADED otherwise.
func overallStatus(providers []models.ProviderStatus) models.HealthStatus {
	if len(providers) == 0 {
		return models.HealthStatusFail
	}

	ok, failed := 0, 0
	for _, p := range providers {
		switch p.Status {
		case models.HealthStatusOK:
			ok++
		case models.HealthStatusFail:
			failed++
		}
	}

	switch {
	case ok == len(providers):
		return models.HealthStatusOK
	case failed == len(providers):
		return models.HealthStatusFail
	default:
		return models.HealthStatusDegraded
	}
}
