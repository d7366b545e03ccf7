package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
	"github.com/ruteri/dao-provisioning-backend/provisioner"
	"go.uber.org/atomic"
)

// ErrBusy is reported when a provisioning run is already in flight.
var ErrBusy = errors.New("a provisioning run is already in progress")

// Runner provisions one network end to end, reporting progress through onStep.
// The command wires it to the environment resolver, a component factory and
// the manifest store.
type Runner interface {
	Run(ctx context.Context, network string, onStep provisioner.ProgressCallback) (*interfaces.Manifest, error)
}

// RunnerFunc adapts a function to a Runner.
type RunnerFunc func(ctx context.Context, network string, onStep provisioner.ProgressCallback) (*interfaces.Manifest, error)

func (f RunnerFunc) Run(ctx context.Context, network string, onStep provisioner.ProgressCallback) (*interfaces.Manifest, error) {
	return f(ctx, network, onStep)
}

// ManifestReader serves stored manifests.
type ManifestReader interface {
	FetchManifest(ctx context.Context, network string) (*interfaces.Manifest, error)
}

// RunStatus describes the current or last provisioning run.
type RunStatus struct {
	RunID      string                 `json:"run_id,omitempty"`
	Network    string                 `json:"network,omitempty"`
	Running    bool                   `json:"running"`
	Step       provisioner.Step       `json:"step,omitempty"`
	StepStatus provisioner.StepStatus `json:"step_status,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  *time.Time             `json:"started_at,omitempty"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	Manifest   *interfaces.Manifest   `json:"manifest,omitempty"`
}

// Handler serves the provisioning API. At most one run is in flight; runs
// outlive the request that started them and are bound to the handler's context.
type Handler struct {
	runner Runner
	store  ManifestReader
	log    *slog.Logger

	ctx  context.Context
	busy atomic.Bool
	wg   sync.WaitGroup

	mu     sync.Mutex
	status RunStatus
}

// NewHandler creates a handler. Runs started through it are cancelled when ctx is.
func NewHandler(ctx context.Context, runner Runner, store ManifestReader, log *slog.Logger) *Handler {
	return &Handler{
		runner: runner,
		store:  store,
		log:    log,
		ctx:    ctx,
	}
}

// HandleProvision starts provisioning the network in the background.
//
// URL format: POST /api/v1/provision/{network}
//
// Responds 202 with the run id, or 409 when another run is in progress.
func (h *Handler) HandleProvision(w http.ResponseWriter, r *http.Request) {
	network := chi.URLParam(r, "network")
	if network == "" {
		http.Error(w, "Missing network in URL", http.StatusBadRequest)
		return
	}

	runID, err := h.Start(network)
	if errors.Is(err, ErrBusy) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, h.log, http.StatusAccepted, map[string]string{
		"run_id":  runID,
		"network": network,
	})
}

// Start launches a run unless one is in flight.
func (h *Handler) Start(network string) (string, error) {
	if !h.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}

	runID := uuid.New().String()
	started := time.Now().UTC()

	h.mu.Lock()
	h.status = RunStatus{RunID: runID, Network: network, Running: true, StartedAt: &started}
	h.mu.Unlock()

	log := h.log.With(slog.String("runID", runID), slog.String("network", network))
	log.Info("Provisioning started")

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.busy.Store(false)

		manifest, err := h.runner.Run(h.ctx, network, h.onStep)

		finished := time.Now().UTC()
		h.mu.Lock()
		h.status.Running = false
		h.status.FinishedAt = &finished
		h.status.Manifest = manifest
		if err != nil {
			h.status.Error = err.Error()
		}
		h.mu.Unlock()

		if err != nil {
			log.Error("Provisioning failed", "err", err)
			return
		}
		log.Info("Provisioning completed", slog.Duration("duration", finished.Sub(started)))
	}()

	return runID, nil
}

func (h *Handler) onStep(step provisioner.Step, status provisioner.StepStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.Step = step
	h.status.StepStatus = status
}

// Wait blocks until the in-flight run, if any, has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// Status returns a copy of the current run status.
func (h *Handler) Status() RunStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// HandleStatus reports the current or last run.
//
// URL format: GET /api/v1/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, h.Status())
}

// HandleManifest returns the stored manifest of a network.
//
// URL format: GET /api/v1/manifests/{network}
func (h *Handler) HandleManifest(w http.ResponseWriter, r *http.Request) {
	network := chi.URLParam(r, "network")
	if network == "" {
		http.Error(w, "Missing network in URL", http.StatusBadRequest)
		return
	}

	manifest, err := h.store.FetchManifest(r.Context(), network)
	switch {
	case errors.Is(err, interfaces.ErrManifestNotFound):
		http.Error(w, "Manifest not found", http.StatusNotFound)
		return
	case errors.Is(err, interfaces.ErrInvalidManifest):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.log.Error("Failed to fetch manifest", "err", err, slog.String("network", network))
		http.Error(w, "Failed to fetch manifest", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, http.StatusOK, manifest)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}
