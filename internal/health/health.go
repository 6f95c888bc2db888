// Package health serves the brain's liveness and readiness probes.
//
// GET /healthz answers 200 while the process can serve HTTP. GET /readyz runs
// every [Checker] concurrently and answers 200 only when all pass; a brain
// that is draining sessions or has lost its datastore reports 503 so a load
// balancer stops sending new streams.
//
// Both endpoints reply with {"status": "ok"|"fail", "checks": {name: result}}.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// CheckTimeout bounds a single readiness check.
const CheckTimeout = 5 * time.Second

// ErrDraining is reported by [Draining] checkers while shutdown is underway.
var ErrDraining = errors.New("draining")

// Checker is one named readiness probe.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Pinger is satisfied by the inventory stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a Checker that pings p.
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// Draining returns a Checker that fails with [ErrDraining] while draining
// reports true.
func Draining(name string, draining func() bool) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if draining() {
			return ErrDraining
		}
		return nil
	}}
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction.
type Handler struct {
	checkers []Checker
}

// New returns a Handler evaluating checkers on every /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz answers 200 when every checker passes within [CheckTimeout] and 503
// otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), CheckTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]string, len(h.checkers))
		failed bool
	)
	for _, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state := "ok"
			if err := c.Check(ctx); err != nil {
				state = "fail: " + err.Error()
			}
			mu.Lock()
			checks[c.Name] = state
			if state != "ok" {
				failed = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	res, status := result{Status: "ok", Checks: checks}, http.StatusOK
	if failed {
		res.Status, status = "fail", http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
