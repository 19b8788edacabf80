package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/czerwonk/delay_tracker/probe"
	"github.com/czerwonk/delay_tracker/render"
	"github.com/czerwonk/delay_tracker/sampler"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

func newTestSampler(t *testing.T) *sampler.Sampler {
	t.Helper()

	p := probe.Func(func(ctx context.Context, target string) (string, error) {
		return "Reply from " + target + ": bytes=32 time=12ms TTL=64", nil
	})
	s, err := sampler.New([]string{"10.0.0.1", "10.0.0.2"}, p, sampler.Options{Capacity: 5, Interval: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	return s
}

func newTestServer(s *sampler.Sampler) *server {
	return &server{
		sampler:  s,
		chart:    render.NewChart(),
		stream:   newStream(s),
		interval: time.Second,
	}
}

func TestHandleChart(t *testing.T) {
	s := newTestSampler(t)
	srv := newTestServer(s)

	rec := httptest.NewRecorder()
	srv.handleChart(rec, httptest.NewRequest(http.MethodGet, "/chart.png", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d before enough samples, got %d", http.StatusServiceUnavailable, rec.Code)
	}

	s.Tick(context.Background())
	s.Tick(context.Background())

	rec = httptest.NewRecorder()
	srv.handleChart(rec, httptest.NewRequest(http.MethodGet, "/chart.png", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("unexpected content type %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("expected PNG body")
	}
}

func TestHandleSnapshot(t *testing.T) {
	s := newTestSampler(t)
	s.Tick(context.Background())
	srv := newTestServer(s)

	rec := httptest.NewRecorder()
	srv.handleSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	var snap sampler.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Epoch != 1 || len(snap.Series) != 2 || snap.Series[1][0] != 12 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestHandleIndex(t *testing.T) {
	srv := newTestServer(newTestSampler(t))

	rec := httptest.NewRecorder()
	srv.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `src="chart.png"`) || !strings.Contains(body, "}, 1000);") {
		t.Errorf("unexpected index page:\n%s", body)
	}
}

func TestStream(t *testing.T) {
	s := newTestSampler(t)
	st := newStream(s)
	s.Subscribe(st.publish)

	ts := httptest.NewServer(st)
	defer ts.Close()
	defer st.close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial sampler.Snapshot
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatal(err)
	}
	if initial.Epoch != 0 {
		t.Errorf("expected initial snapshot before any tick, got epoch %d", initial.Epoch)
	}

	waitForClients(t, st, 1)
	s.Tick(context.Background())

	var next sampler.Snapshot
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatal(err)
	}
	if next.Epoch != 1 || next.Series[0][0] != 12 {
		t.Errorf("unexpected snapshot %+v", next)
	}
}

func waitForClients(t *testing.T, st *stream, n int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st.mu.Lock()
		got := len(st.clients)
		st.mu.Unlock()

		if got == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("expected %d stream clients", n)
}
