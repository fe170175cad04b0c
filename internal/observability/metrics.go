package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks harvest, export and forum collection counters.
type Metrics struct {
	// API metrics
	RequestsTotal   atomic.Int64
	RequestsFailed  atomic.Int64
	Responses2xx    atomic.Int64
	Responses4xx    atomic.Int64
	Responses5xx    atomic.Int64
	BytesDownloaded atomic.Int64

	// Harvest metrics
	DocumentsWritten atomic.Int64
	NullDocuments    atomic.Int64
	ActiveWorkers    atomic.Int32

	// Export metrics
	TablesExported atomic.Int64
	RowsExported   atomic.Int64

	// Forum metrics
	PagesCrawled      atomic.Int64
	CommentsExtracted atomic.Int64
	CommentsDropped   atomic.Int64
	CommentsStored    atomic.Int64
	CommentsDuplicate atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ObserveStatus records a completed HTTP exchange.
func (m *Metrics) ObserveStatus(status, size int) {
	m.BytesDownloaded.Add(int64(size))
	switch {
	case status >= 500:
		m.Responses5xx.Add(1)
	case status >= 400:
		m.Responses4xx.Add(1)
	case status >= 200 && status < 300:
		m.Responses2xx.Add(1)
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"wowharvest_api_requests_total", "Total API requests made", "counter", m.RequestsTotal.Load()},
		{"wowharvest_api_requests_failed_total", "Total failed API requests", "counter", m.RequestsFailed.Load()},
		{"wowharvest_api_responses_2xx_total", "Total 2xx responses", "counter", m.Responses2xx.Load()},
		{"wowharvest_api_responses_4xx_total", "Total 4xx responses", "counter", m.Responses4xx.Load()},
		{"wowharvest_api_responses_5xx_total", "Total 5xx responses", "counter", m.Responses5xx.Load()},
		{"wowharvest_bytes_downloaded_total", "Total bytes downloaded", "counter", m.BytesDownloaded.Load()},
		{"wowharvest_documents_written_total", "Total JSON documents written", "counter", m.DocumentsWritten.Load()},
		{"wowharvest_null_documents_total", "Total documents written as null", "counter", m.NullDocuments.Load()},
		{"wowharvest_active_workers", "Currently active fetch workers", "gauge", int64(m.ActiveWorkers.Load())},
		{"wowharvest_tables_exported_total", "Total tables exported", "counter", m.TablesExported.Load()},
		{"wowharvest_rows_exported_total", "Total table rows exported", "counter", m.RowsExported.Load()},
		{"wowharvest_forum_pages_total", "Total forum pages crawled", "counter", m.PagesCrawled.Load()},
		{"wowharvest_comments_extracted_total", "Total comments extracted", "counter", m.CommentsExtracted.Load()},
		{"wowharvest_comments_dropped_total", "Total comments dropped by the pipeline", "counter", m.CommentsDropped.Load()},
		{"wowharvest_comments_stored_total", "Total comments stored", "counter", m.CommentsStored.Load()},
		{"wowharvest_comments_duplicate_total", "Total duplicate comments skipped", "counter", m.CommentsDuplicate.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer serves metrics until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"requests_total":     m.RequestsTotal.Load(),
		"requests_failed":    m.RequestsFailed.Load(),
		"responses_2xx":      m.Responses2xx.Load(),
		"responses_4xx":      m.Responses4xx.Load(),
		"responses_5xx":      m.Responses5xx.Load(),
		"bytes_downloaded":   m.BytesDownloaded.Load(),
		"documents_written":  m.DocumentsWritten.Load(),
		"null_documents":     m.NullDocuments.Load(),
		"tables_exported":    m.TablesExported.Load(),
		"rows_exported":      m.RowsExported.Load(),
		"forum_pages":        m.PagesCrawled.Load(),
		"comments_extracted": m.CommentsExtracted.Load(),
		"comments_dropped":   m.CommentsDropped.Load(),
		"comments_stored":    m.CommentsStored.Load(),
		"comments_duplicate": m.CommentsDuplicate.Load(),
	}
}
