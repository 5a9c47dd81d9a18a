package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/bornholm/trainyard/internal/slogx"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type PingerFunc func(ctx context.Context) error

func (fn PingerFunc) Ping(ctx context.Context) error {
	return fn(ctx)
}

type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
)

type CheckResult struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

type DiskUsage struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"usedPercent"`
}

type Response struct {
	Status Status        `json:"status"`
	Checks []CheckResult `json:"checks"`
	Disk   *DiskUsage    `json:"disk,omitempty"`
}

type Handler struct {
	checks  map[string]Pinger
	dataDir string
	timeout time.Duration
	logger  *slog.Logger
}

// ServeHTTP implements http.Handler. The handler answers on any path so it
// can be mounted on an exact route.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.handleHealth(w, r)
}

// NewHandler reports the reachability of each named dependency and the disk
// usage of dataDir. Any failing check turns the response into a 503.
func NewHandler(checks map[string]Pinger, dataDir string, timeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		checks:  checks,
		dataDir: dataDir,
		timeout: timeout,
		logger:  logger.With("component", "health-handler"),
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	response := Response{
		Status: StatusOK,
		Checks: make([]CheckResult, 0, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		result := CheckResult{Name: name, Status: StatusOK}

		if err := h.checks[name].Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", slog.String("check", name), slogx.Error(err))

			result.Status = StatusDegraded
			result.Error = err.Error()
			response.Status = StatusDegraded
		}

		response.Checks = append(response.Checks, result)
	}

	if h.dataDir != "" {
		usage, err := disk.UsageWithContext(ctx, h.dataDir)
		if err != nil {
			h.logger.WarnContext(ctx, "could not retrieve disk usage", slog.String("path", h.dataDir), slogx.Error(err))

			response.Status = StatusDegraded
			response.Checks = append(response.Checks, CheckResult{
				Name:   "disk",
				Status: StatusDegraded,
				Error:  err.Error(),
			})
		} else {
			response.Disk = &DiskUsage{
				Path:        usage.Path,
				Total:       usage.Total,
				Free:        usage.Free,
				UsedPercent: usage.UsedPercent,
			}
		}
	}

	statusCode := http.StatusOK
	if response.Status != StatusOK {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.ErrorContext(ctx, "could not encode health response", slogx.Error(err))
	}
}

var _ http.Handler = &Handler{}
