// Package httpservice implements the remote benchmark protocol server side
// (spec.md §4.5/§4.6): a gorilla/mux router exposing /info,
// /protocolversion, /preparephase, /startphase, /status, /benchresult, and
// /interruptphase, backed by one internal/workermanager.Manager per
// process.
package httpservice

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/config"
	"github.com/TheEntropyCollective/storagebench/internal/logging"
	"github.com/TheEntropyCollective/storagebench/internal/remoteworker"
	"github.com/TheEntropyCollective/storagebench/internal/workermanager"
)

// Version is the service binary's reported version string, answered by
// GET /info.
const Version = "storagebench-service/1"

// phaseRun tracks one in-flight or completed phase's background
// completion goroutine, so /benchresult can block until it's done and
// /status can be answered without blocking at all.
type phaseRun struct {
	phase   bench.Phase
	benchID bench.BenchID
	done    chan struct{}
	totals  workermanager.PhaseTotals
}

// Service holds the state of one remote benchmark process: the worker
// manager built by the most recent /preparephase, and a process-wide
// mutex-protected error-history buffer accumulated across every phase this
// process has run (spec.md's Design Notes on the service's error-history
// string).
type Service struct {
	logger *logging.Logger

	mu         sync.Mutex
	mgr        *workermanager.Manager
	cfg        *config.Config
	run        *phaseRun
	errHistory strings.Builder

	router *mux.Router
}

// New constructs a Service with its router wired up. It does not start an
// HTTP listener; callers use Router() with http.Server or httptest.
func New(logger *logging.Logger) *Service {
	s := &Service{logger: logger.WithComponent("httpservice")}
	r := mux.NewRouter()
	r.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/protocolversion", s.handleProtocolVersion).Methods(http.MethodGet)
	r.HandleFunc("/preparephase", s.handlePreparePhase).Methods(http.MethodPost)
	r.HandleFunc("/startphase", s.handleStartPhase).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/benchresult", s.handleBenchResult).Methods(http.MethodGet)
	r.HandleFunc("/interruptphase", s.handleInterruptPhase).Methods(http.MethodGet)
	s.router = r
	return s
}

// Router returns the http.Handler to mount (directly, or via http.Server).
func (s *Service) Router() http.Handler { return s.router }

// Close releases the current worker manager, if any.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr != nil {
		s.mgr.Close()
		s.mgr = nil
	}
}

func (s *Service) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, remoteworker.InfoResponse{Version: Version})
}

func (s *Service) handleProtocolVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, remoteworker.ProtocolVersionResponse{ProtocolVersion: remoteworker.ProtocolVersion})
}

// handlePreparePhase decodes the posted configuration, strictly (unknown
// keys rejected, per spec.md §6), builds a fresh worker manager, and
// launches its worker goroutines.
func (s *Service) handlePreparePhase(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cfg, err := config.DecodeStrict(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mgr, err := workermanager.New(cfg, s.logger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	mgr.PrepareThreads()

	s.mu.Lock()
	if s.mgr != nil {
		s.mgr.Close()
	}
	s.mgr = mgr
	s.cfg = cfg
	s.run = nil
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

// handleStartPhase publishes (phase, benchid) to the prepared worker
// manager and launches a background goroutine that waits for completion
// and aggregates totals, so the handler itself returns immediately (the
// master learns completion by polling /status then fetching /benchresult).
func (s *Service) handleStartPhase(w http.ResponseWriter, r *http.Request) {
	phaseName := r.URL.Query().Get("phase")
	p, err := bench.ParsePhase(phaseName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := bench.ParseBenchID(r.URL.Query().Get("benchid"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	mgr := s.mgr
	s.mu.Unlock()
	if mgr == nil {
		http.Error(w, "no phase prepared", http.StatusPreconditionFailed)
		return
	}

	benchID := mgr.StartNextPhase(p, &id)
	run := &phaseRun{phase: p, benchID: benchID, done: make(chan struct{})}
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()

	go func() {
		snap, waitErr := mgr.WaitForWorkersDone()
		totals := mgr.GetPhaseNumEntriesAndBytes(p, snap)
		if totals.Err == nil && isWorkerFailure(waitErr) {
			totals.Err = waitErr
		}
		s.mu.Lock()
		if totals.Err != nil {
			s.errHistory.WriteString(totals.Err.Error())
			s.errHistory.WriteString("\n")
		}
		run.totals = totals
		s.mu.Unlock()
		close(run.done)
	}()

	w.WriteHeader(http.StatusOK)
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	mgr := s.mgr
	run := s.run
	s.mu.Unlock()
	if mgr == nil || run == nil {
		writeJSON(w, remoteworker.StatusResponse{})
		return
	}
	snap, live, liveRWMixRead := mgr.LiveSnapshot()
	writeJSON(w, remoteworker.StatusResponse{
		Phase:              run.phase.String(),
		BenchID:            run.benchID.String(),
		NumWorkersDone:     snap.DoneCount,
		NumWorkersDoneErr:  snap.DoneWithErrorCount,
		NumWorkers:         snap.NumWorkers,
		EntriesDone:        live.EntriesDone,
		BytesDone:          live.BytesDone,
		IopsDone:           live.IopsDone,
		RWMixReadBytesDone: liveRWMixRead.BytesDone,
		RWMixReadIopsDone:  liveRWMixRead.IopsDone,
	})
}

// handleBenchResult blocks until the phase launched by the most recent
// /startphase completes, then answers with its aggregated totals. A
// master only calls this after /status shows every worker done, so in
// practice it returns immediately.
func (s *Service) handleBenchResult(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()
	if run == nil {
		http.Error(w, "no phase started", http.StatusPreconditionFailed)
		return
	}
	select {
	case <-run.done:
	case <-time.After(10 * time.Minute):
		http.Error(w, "benchresult timed out waiting for phase completion", http.StatusGatewayTimeout)
		return
	}

	s.mu.Lock()
	errHistory := s.errHistory.String()
	s.mu.Unlock()

	totals := run.totals
	resp := remoteworker.ResultResponse{
		Phase:              run.phase.String(),
		BenchID:            run.benchID.String(),
		ErrorHistory:       errHistory,
		EntriesDone:        totals.Entries.EntriesDone,
		BytesDone:          totals.Entries.BytesDone,
		IopsDone:           totals.Entries.IopsDone,
		RWMixReadBytesDone: totals.RWMixRead.BytesDone,
		RWMixReadIopsDone:  totals.RWMixRead.IopsDone,
		StonewallEntries:   totals.StonewallEntries.EntriesDone,
		StonewallBytes:     totals.StonewallEntries.BytesDone,
		StonewallIops:      totals.StonewallEntries.IopsDone,
		ElapsedUs:          totals.ElapsedUs,
		FirstDoneCPU:       totals.FirstDoneCPU,
		LastDoneCPU:        totals.LastDoneCPU,
	}
	if totals.Latency != nil {
		resp.Latency = totals.Latency.Serialize()
	}
	writeJSON(w, resp)
}

// handleInterruptPhase interrupts the in-progress phase (if any) and, when
// quit=true, exits the process after the response is written — the master
// expects a connection-refused on the ensuing request, not a clean reply.
func (s *Service) handleInterruptPhase(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	mgr := s.mgr
	s.mu.Unlock()
	if mgr != nil {
		mgr.InterruptAndNotifyWorkers()
	}
	w.WriteHeader(http.StatusOK)

	quit, _ := strconv.ParseBool(r.URL.Query().Get("quit"))
	if quit {
		go func() {
			time.Sleep(50 * time.Millisecond)
			os.Exit(0)
		}()
	}
}

// isWorkerFailure reports whether err represents a genuine benchmark
// failure, as opposed to the expected, non-error ways a phase ends early
// (a user interrupt or an elapsed time limit), neither of which should
// populate the error-history string.
func isWorkerFailure(err error) bool {
	if err == nil {
		return false
	}
	switch err.(type) {
	case *bench.UserInterruptError, *bench.TimeLimitExpiredError:
		return false
	default:
		return true
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
