package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"telemetry-broker/internal/hub"
	"telemetry-broker/internal/middleware"
	"telemetry-broker/internal/model"
	"telemetry-broker/internal/store"
)

// countingStore counts every store call the HTTP surface makes.
type countingStore struct {
	*store.Store
	calls atomic.Int32
}

func (s *countingStore) GetSource(ctx context.Context, id string) (model.Source, bool, error) {
	s.calls.Add(1)
	return s.Store.GetSource(ctx, id)
}

func (s *countingStore) AddRecord(ctx context.Context, sourceID string, data []byte) (int64, error) {
	s.calls.Add(1)
	return s.Store.AddRecord(ctx, sourceID, data)
}

func newTestStore(t *testing.T) *countingStore {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "broker.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	if err := st.AddSource(ctx, model.Source{ID: "src1", Active: true}); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if err := st.AddSource(ctx, model.Source{ID: "src2", Active: false}); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	return &countingStore{Store: st}
}

func postAdd(r http.Handler, peer string, header map[string]string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/add", strings.NewReader(body))
	req.RemoteAddr = peer
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func recordCount(t *testing.T, st *countingStore) int64 {
	t.Helper()
	n, err := st.CountRecords(context.Background())
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	return n
}

func TestAdd_Accepts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newTestStore(t)
	r := NewRouter(Deps{Store: st})

	w := postAdd(r, "192.168.1.1:12345", map[string]string{"X-Source-Id": "src1"}, "a")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "1" {
		t.Fatalf("expected body 1, got %q", w.Body.String())
	}
	if w.Header().Get("X-Record-Id") == "" {
		t.Fatalf("expected X-Record-Id header")
	}

	records, err := st.UnsentBySource(context.Background(), "src1", 10)
	if err != nil {
		t.Fatalf("UnsentBySource: %v", err)
	}
	if len(records) != 1 || string(records[0].Data) != "a" || records[0].Sent {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestAdd_Rejections(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		peer   string
		header map[string]string
		body   string
		code   int
		want   string
	}{
		{"empty payload", "192.168.1.1:12345", map[string]string{"X-Source-Id": "src1"}, "", 500, "Empty data is not allowed."},
		{"missing header", "192.168.1.1:12345", nil, "a", 400, "Missing X-Source-Id header"},
		{"malformed header", "192.168.1.1:12345", map[string]string{"X-Source-Id": "sr\x7fc"}, "a", 400, "Invalid X-Source-Id header value"},
		{"empty header", "192.168.1.1:12345", map[string]string{"X-Source-Id": ""}, "a", 400, "X-Source-Id header cannot be empty"},
		{"unknown source", "10.0.0.5:1000", map[string]string{"X-Source-Id": "nope"}, "a", 403, "Source with ID nope does not registered. Access denied."},
		{"disabled source", "10.0.0.5:1000", map[string]string{"X-Source-Id": "src2"}, "a", 403, "Source with ID src2 is disabled. Access denied."},
		{"public origin", "8.8.8.8:53", map[string]string{"X-Source-Id": "src1"}, "a", 403, "Access is allowed only from private IP addresses"},
		{"unknown origin", "garbage", map[string]string{"X-Source-Id": "src1"}, "a", 403, "Unable to determine client IP address"},
	}

	for _, tc := range cases {
		st := newTestStore(t)
		r := NewRouter(Deps{Store: st})

		w := postAdd(r, tc.peer, tc.header, tc.body)
		if w.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.code, w.Code, w.Body.String())
		}
		if w.Body.String() != tc.want {
			t.Fatalf("%s: expected body %q, got %q", tc.name, tc.want, w.Body.String())
		}
		if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
			t.Fatalf("%s: expected text/plain, got %q", tc.name, w.Header().Get("Content-Type"))
		}
		if n := recordCount(t, st); n != 0 {
			t.Fatalf("%s: expected no records, got %d", tc.name, n)
		}
	}
}

func TestAdd_PublicOriginNeverReachesStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newTestStore(t)
	r := NewRouter(Deps{Store: st})

	w := postAdd(r, "8.8.8.8:4000", map[string]string{"X-Source-Id": "src1"}, "a")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if n := st.calls.Load(); n != 0 {
		t.Fatalf("expected 0 store calls, got %d", n)
	}
}

func TestAdd_IDsIncrease(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newTestStore(t)
	r := NewRouter(Deps{Store: st})

	var last int64
	for i := 0; i < 3; i++ {
		w := postAdd(r, "127.0.0.1:9000", map[string]string{"X-Source-Id": "src1"}, "abc")
		if w.Code != http.StatusOK || w.Body.String() != "3" {
			t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
		}
		id, err := strconv.ParseInt(w.Header().Get("X-Record-Id"), 10, 64)
		if err != nil {
			t.Fatalf("bad X-Record-Id: %v", err)
		}
		if id <= last {
			t.Fatalf("ids not increasing: %d then %d", last, id)
		}
		last = id
	}
}

func TestHealthAndSettings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newTestStore(t)
	r := NewRouter(Deps{Store: st})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.168.0.10:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"ok":true`)) {
		t.Fatalf("unexpected health response %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	req.RemoteAddr = "192.168.0.10:5555"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var settings map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &settings); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if settings[store.DescriptionKey] == "" {
		t.Fatalf("expected seeded settings, got %v", settings)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	req.RemoteAddr = "1.1.1.1:5555"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for public peer, got %d", w.Code)
	}
}

func TestFeed_PingAndRecordEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newTestStore(t)
	feedHub := hub.New()
	r := NewRouter(Deps{Store: st, Hub: feedHub})

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/feed?source=src1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var resp map[string]any
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp["type"] != "pong" {
		t.Fatalf("expected pong, got %v", resp)
	}
	if feedHub.Count() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", feedHub.Count())
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/add", strings.NewReader("hello"))
	req.Header.Set("X-Source-Id", "src1")
	httpResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /add: %v", err)
	}
	httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", httpResp.StatusCode)
	}

	var event map[string]any
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if event["type"] != "record" || event["sourceId"] != "src1" || event["size"] != float64(5) {
		t.Fatalf("unexpected event: %v", event)
	}
	if httpResp.Header.Get("X-Record-Id") != "1" || event["recordId"] != float64(1) {
		t.Fatalf("record id mismatch: header %q event %v", httpResp.Header.Get("X-Record-Id"), event["recordId"])
	}
}

func TestFeed_UnknownSource(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newTestStore(t)
	r := NewRouter(Deps{Store: st})

	req := httptest.NewRequest(http.MethodGet, "/v1/feed?source=nope", nil)
	req.RemoteAddr = "127.0.0.1:1000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

// stalledWriter never finishes a write until released.
type stalledWriter struct {
	release chan struct{}
}

func (w *stalledWriter) Write([]byte) error {
	<-w.release
	return nil
}

func (w *stalledWriter) Close() error { return nil }

func TestAdd_DoesNotWaitForFeedSubscribers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newTestStore(t)
	feedHub := hub.New()
	release := make(chan struct{})
	defer close(release)
	feedHub.Register(&hub.Connection{SourceID: "src1", Writer: &stalledWriter{release: release}})
	feedHub.Register(&hub.Connection{SourceID: hub.AllSources, Writer: &stalledWriter{release: release}})
	r := NewRouter(Deps{Store: st, Hub: feedHub})

	for i := 0; i < 3; i++ {
		start := time.Now()
		w := postAdd(r, "192.168.1.1:12345", map[string]string{"X-Source-Id": "src1"}, "a")
		elapsed := time.Since(start)
		if w.Code != http.StatusOK || w.Body.String() != "1" {
			t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
		}
		if elapsed > 500*time.Millisecond {
			t.Fatalf("/add held for %v by stalled subscribers", elapsed)
		}
	}
	if n := recordCount(t, st); n != 3 {
		t.Fatalf("expected 3 records, got %d", n)
	}
}

func TestAdd_PayloadLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newTestStore(t)
	r := NewRouter(Deps{Store: st, MaxPayloadBytes: 8})

	w := postAdd(r, "192.168.1.1:12345", map[string]string{"X-Source-Id": "src1"}, "12345678")
	if w.Code != http.StatusOK || w.Body.String() != "8" {
		t.Fatalf("expected payload at the limit to be admitted, got %d %q", w.Code, w.Body.String())
	}

	w = postAdd(r, "192.168.1.1:12345", map[string]string{"X-Source-Id": "src1"}, "123456789")
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "A payload reached size limit." {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
	if n := recordCount(t, st); n != 1 {
		t.Fatalf("expected only the first record, got %d", n)
	}
}

func TestFeed_RateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newTestStore(t)
	limiter := middleware.NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Stop)
	r := NewRouter(Deps{Store: st, FeedLimiter: limiter})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/feed?source=nope", nil)
		req.RemoteAddr = "127.0.0.1:1000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusNotFound || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected 404 then 429, got %v", codes)
	}
}
