package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

const checkTimeout = 2 * time.Second

// CheckFunc проверяет один компонент (БД, брокер). nil означает, что компонент жив.
type CheckFunc func(ctx context.Context) error

// CheckResult — результат одной проверки в ответе /healthz.
type CheckResult struct {
	Name       string `json:"name"`
	Healthy    bool   `json:"healthy"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Report — агрегированный ответ /healthz.
type Report struct {
	Healthy       bool          `json:"healthy"`
	Version       string        `json:"version,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Checks        []CheckResult `json:"checks,omitempty"`
}

// Handler отвечает на health-пробы. Проверки регистрируются при старте приложения.
type Handler struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	version   string
	startedAt time.Time
}

// NewHandler создаёт health handler.
func NewHandler(version string) *Handler {
	return &Handler{
		checks:    make(map[string]CheckFunc),
		version:   version,
		startedAt: time.Now(),
	}
}

// Register добавляет именованную проверку компонента.
func (h *Handler) Register(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

func (h *Handler) snapshot() map[string]CheckFunc {
	h.mu.RLock()
	defer h.mu.RUnlock()

	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	return checks
}

func (h *Handler) run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	report := Report{
		Healthy:       true,
		Version:       h.version,
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}

	for name, fn := range h.snapshot() {
		start := time.Now()
		err := fn(ctx)
		result := CheckResult{
			Name:       name,
			Healthy:    err == nil,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			result.Error = err.Error()
			report.Healthy = false
		}
		report.Checks = append(report.Checks, result)
	}

	sort.Slice(report.Checks, func(i, j int) bool {
		return report.Checks[i].Name < report.Checks[j].Name
	})

	return report
}

// ServeHTTP обрабатывает readiness-пробу: 503, если хотя бы одна проверка упала.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.run(r.Context())

	statusCode := http.StatusOK
	if !report.Healthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(report)
}

// Liveness — простая liveness-проба, всегда 200, пока процесс жив.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
