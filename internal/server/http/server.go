package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzbill/headcache/internal/headcache"
)

// runtimeSource is the surface of *runtime.Runtime the query gateway
// actually calls; tests substitute a fake rather than standing up a
// real Kafka/pebble-backed Runtime.
type runtimeSource interface {
	Querier() headcache.Querier
	CheckHealth(ctx context.Context) error
	InstanceID() string
}

// Server is the JSON query gateway: one query endpoint plus health and
// metrics, matching the teacher's own server shape (stdlib mux, manual
// ListenAndServe with graceful shutdown).
type Server struct {
	rt  runtimeSource
	q   headcache.Querier
	srv *http.Server
	lis net.Listener
}

// New builds a Server bound to rt. Routes are registered eagerly so the
// returned Server is immediately ready for ListenAndServe.
func New(rt runtimeSource) *Server {
	mux := http.NewServeMux()
	s := &Server{rt: rt, q: rt.Querier(), srv: &http.Server{Handler: cors(mux)}}
	mux.HandleFunc("/v1/query", s.handleQuery)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return s
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within a 5s window.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases the listener without waiting for in-flight requests;
// prefer cancelling the ListenAndServe context for a graceful stop.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving", "instanceId": s.rt.InstanceID()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "instanceId": s.rt.InstanceID()})
}

// queryResponse mirrors the three-way Result (Empty/NonEmpty/Invalid) as
// JSON: invalid=true carries no other field, otherwise empty=true or the
// NonEmpty payload (seqNr, optional deleteTo).
type queryResponse struct {
	Invalid  bool    `json:"invalid"`
	Empty    bool    `json:"empty,omitempty"`
	SeqNr    *uint64 `json:"seqNr,omitempty"`
	DeleteTo *uint64 `json:"deleteTo,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	topic := q.Get("topic")
	id := q.Get("id")
	if topic == "" || id == "" {
		http.Error(w, "topic and id are required", http.StatusBadRequest)
		return
	}
	partition, err := strconv.ParseUint(q.Get("partition"), 10, 32)
	if err != nil {
		http.Error(w, "partition must be a non-negative integer", http.StatusBadRequest)
		return
	}
	offset, err := strconv.ParseUint(q.Get("offset"), 10, 64)
	if err != nil {
		http.Error(w, "offset must be a non-negative integer", http.StatusBadRequest)
		return
	}

	result, err := s.q.Get(r.Context(), headcache.Key{Topic: headcache.Topic(topic), ID: headcache.AggregateID(id)}, headcache.Partition(partition), headcache.Offset(offset))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			http.Error(w, err.Error(), http.StatusGatewayTimeout)
			return
		}
		if errors.Is(err, headcache.ErrClosed) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := queryResponse{Invalid: result.IsInvalid()}
	if !resp.Invalid {
		info := result.Info()
		if info.IsEmpty() {
			resp.Empty = true
		} else {
			seqNr := uint64(info.SeqNr())
			resp.SeqNr = &seqNr
			if deleteTo, ok := info.DeleteTo(); ok {
				d := uint64(deleteTo)
				resp.DeleteTo = &d
			}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
