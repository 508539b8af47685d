package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kustomzone/hyperbee/pkg/btree"
)

// Server holds the HTTP facade's state: the tree it fronts, its static
// config, and its Prometheus collectors.
type Server struct {
	tree    *btree.Tree
	config  ServerConfig
	metrics *Metrics
}

// NewServer wraps tree as an HTTP facade.
func NewServer(tree *btree.Tree, config ServerConfig, metrics *Metrics) *Server {
	return &Server{tree: tree, config: config, metrics: metrics}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handlePut stores the request body as the value for the URL-escaped key
// path segment.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key, err := url.QueryUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		s.metrics.RecordTreeOperation("put", false, time.Since(start))
		sendError(w, "Key is required", http.StatusBadRequest)
		return
	}

	value, err := io.ReadAll(r.Body)
	if err != nil {
		s.metrics.RecordTreeOperation("put", false, time.Since(start))
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if err := s.tree.Put(r.Context(), []byte(key), value); err != nil {
		s.metrics.RecordTreeOperation("put", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to put key-value: %v", err), http.StatusInternalServerError)
		return
	}

	s.metrics.RecordTreeOperation("put", true, time.Since(start))
	sendSuccess(w, map[string]string{"message": "key stored"})
}

// handleGet returns the raw value bytes for the URL-escaped key path
// segment, or 404 if absent.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key, err := url.QueryUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		s.metrics.RecordTreeOperation("get", false, time.Since(start))
		sendError(w, "Key is required", http.StatusBadRequest)
		return
	}

	be, err := s.tree.Get(r.Context(), []byte(key))
	if err != nil {
		s.metrics.RecordTreeOperation("get", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to get value: %v", err), http.StatusInternalServerError)
		return
	}
	if be == nil {
		s.metrics.RecordTreeOperation("get", false, time.Since(start))
		sendError(w, "Key not found", http.StatusNotFound)
		return
	}

	s.metrics.RecordTreeOperation("get", true, time.Since(start))
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(be.Value())
}

// handleScan streams every key in ascending order as newline-delimited
// JSON: one {"seq","key","value"} object per line, key/value base64
// encoded by encoding/json's []byte handling.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	scan, err := s.tree.CreateReadStream(r.Context())
	if err != nil {
		s.metrics.RecordTreeOperation("scan", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to start scan: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	n := 0
	enc := json.NewEncoder(bw)
	for {
		be, err := scan.Next(r.Context())
		if err != nil {
			s.metrics.RecordTreeOperation("scan", false, time.Since(start))
			return
		}
		if be == nil {
			break
		}
		entry := scanEntry{Seq: be.Seq(), Key: be.Key(), Value: be.Value()}
		if err := enc.Encode(entry); err != nil {
			s.metrics.RecordTreeOperation("scan", false, time.Since(start))
			return
		}
		n++
	}
	s.metrics.RecordScanEntries(n)
	s.metrics.RecordTreeOperation("scan", true, time.Since(start))
}

// ReadyCheck exercises Tree.Ready without the context of an in-flight
// request; the CLI's "ready" command calls this directly so startup can
// fail fast on a broken data directory.
func ReadyCheck(ctx context.Context, tree *btree.Tree) error {
	return tree.Ready(ctx)
}
