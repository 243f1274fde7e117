package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	httpRequests      = newCounterVec("method", "route", "status")
	transitions       = newCounterVec("from", "to")
	verifications     = newCounterVec("reason")
	stubRenders       = newCounterVec("outcome")
	notifications     = newCounterVec("kind", "outcome")
	workerMessages    = newCounterVec("outcome")
	overdueEscalation atomic.Uint64

	httpDuration   = newHistogram([]float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500})
	renderDuration = newHistogram([]float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000})
)

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	httpRequests.Inc(method, route, strconv.Itoa(status))
	httpDuration.Observe(durationMs(elapsed))
}

// IncTransition counts a committed status change.
func IncTransition(from, to string) {
	transitions.Inc(from, to)
}

// IncVerification counts a pickup verification outcome.
func IncVerification(reason string) {
	verifications.Inc(reason)
}

// ObserveStubRender records a stub artifact render attempt.
func ObserveStubRender(ok bool, elapsed time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	stubRenders.Inc(outcome)
	renderDuration.Observe(durationMs(elapsed))
}

// IncNotification counts a notification attempt by kind.
func IncNotification(kind string, ok bool) {
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	notifications.Inc(kind, outcome)
}

// IncWorkerMessage counts a queue message outcome in the worker.
func IncWorkerMessage(outcome string) {
	workerMessages.Inc(outcome)
}

// AddOverdueEscalations counts requests whose priority the overdue sweep raised.
func AddOverdueEscalations(n int64) {
	if n > 0 {
		overdueEscalation.Add(uint64(n))
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounterVec(&buf, "http_requests_total", "HTTP requests served", httpRequests)
	writeHistogram(&buf, "http_request_duration_ms", "HTTP request duration in milliseconds", httpDuration.Snapshot())
	writeCounterVec(&buf, "request_status_transitions_total", "Document request status changes", transitions)
	writeCounterVec(&buf, "pickup_verifications_total", "Pickup verifications by outcome", verifications)
	writeCounterVec(&buf, "stub_renders_total", "Pickup stub renders by outcome", stubRenders)
	writeHistogram(&buf, "stub_render_duration_ms", "Pickup stub render duration in milliseconds", renderDuration.Snapshot())
	writeCounterVec(&buf, "notifications_total", "Notifications by kind and outcome", notifications)
	writeCounterVec(&buf, "worker_messages_total", "Worker queue messages by outcome", workerMessages)
	writeCounter(&buf, "overdue_escalations_total", "Requests escalated by the overdue sweep", overdueEscalation.Load())
	return buf.String()
}

type counterVec struct {
	labels []string
	mu     sync.Mutex
	values map[string]*atomic.Uint64
}

func newCounterVec(labels ...string) *counterVec {
	return &counterVec{labels: labels, values: make(map[string]*atomic.Uint64)}
}

func (v *counterVec) Inc(values ...string) {
	key := strings.Join(values, "\x00")
	v.mu.Lock()
	c, ok := v.values[key]
	if !ok {
		c = &atomic.Uint64{}
		v.values[key] = c
	}
	v.mu.Unlock()
	c.Add(1)
}

// Value returns the current count for the given label values.
func (v *counterVec) Value(values ...string) uint64 {
	key := strings.Join(values, "\x00")
	v.mu.Lock()
	defer v.mu.Unlock()
	if c, ok := v.values[key]; ok {
		return c.Load()
	}
	return 0
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe adds value to the first bucket that holds it; rendering accumulates.
func (h *histogram) Observe(value float64) {
	if value < 0 {
		value = 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeCounterVec(buf *bytes.Buffer, name, help string, v *counterVec) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)

	v.mu.Lock()
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts := strings.Split(k, "\x00")
		pairs := make([]string, 0, len(v.labels))
		for i, label := range v.labels {
			val := ""
			if i < len(parts) {
				val = parts[i]
			}
			pairs = append(pairs, fmt.Sprintf("%s=%q", label, val))
		}
		fmt.Fprintf(buf, "%s{%s} %d\n", name, strings.Join(pairs, ","), v.values[k].Load())
	}
	v.mu.Unlock()
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
