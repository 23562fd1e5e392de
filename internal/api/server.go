// Package api serves the shim's local observation endpoints: instance
// state, host capabilities and Prometheus metrics. It is read-only; the
// lifecycle verbs stay with the orchestrator-facing surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/shimrun/shimrun/internal/errdefs"
	"github.com/shimrun/shimrun/internal/state"
	"github.com/shimrun/shimrun/pkg/logging"
)

// Server exposes the records under a single state root.
type Server struct {
	root string
	log  *logging.Logger
}

// NewServer creates a server over the given state root.
func NewServer(root string, log *logging.Logger) *Server {
	if log == nil {
		log = logging.New(logging.INFO, false)
	}
	return &Server{root: root, log: log}
}

// Router wires all routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthz).Methods("GET")
	r.HandleFunc("/host", s.hostInfo).Methods("GET")
	r.HandleFunc("/instances", s.listInstances).Methods("GET")
	r.HandleFunc("/instances/{id}", s.getInstance).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// hostInfo reports a capability snapshot of the node running the shim.
func (s *Server) hostInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{}

	if threads, err := cpu.Counts(true); err == nil {
		info["cpu_threads"] = threads
	}
	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info["cpu_model"] = cpus[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info["ram_total_bytes"] = vm.Total
	}

	writeJSON(w, http.StatusOK, info)
}

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	records, err := state.List(s.root)
	if err != nil {
		s.log.Error("listing instances", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []*state.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) getInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := state.Load(s.root, id)
	if err != nil {
		if errors.Is(err, errdefs.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such instance"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
