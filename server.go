package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/czerwonk/delay_tracker/config"
	"github.com/czerwonk/delay_tracker/render"
	"github.com/czerwonk/delay_tracker/sampler"
	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type server struct {
	sampler  *sampler.Sampler
	chart    *render.Chart
	stream   *stream
	interval time.Duration
	listener net.Listener
	http     *http.Server
}

// newServer binds the listener so a bad address fails at startup.
func newServer(s *sampler.Sampler, cfg *config.Config) (*server, error) {
	ln, err := net.Listen("tcp", *listenAddress)
	if err != nil {
		return nil, fmt.Errorf("cannot listen on %s: %w", *listenAddress, err)
	}

	srv := &server{
		sampler:  s,
		chart:    render.NewChart(),
		stream:   newStream(s),
		interval: cfg.Sampling.Interval.Duration(),
		listener: ln,
	}
	s.Subscribe(srv.stream.publish)

	reg := prometheus.NewRegistry()
	reg.MustRegister(newDelayCollector(s, cfg.Targets, delayMetricsUnit))

	srv.http = &http.Server{
		Handler:           srv.routes(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

func (srv *server) routes(reg *prometheus.Registry) http.Handler {
	l := log.New()
	l.Level = log.ErrorLevel

	r := mux.NewRouter()
	r.HandleFunc("/", srv.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/chart.png", srv.handleChart).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshot", srv.handleSnapshot).Methods(http.MethodGet)
	r.Handle("/ws", srv.stream)
	r.Handle(*metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog:      l,
		ErrorHandling: promhttp.ContinueOnError,
	}))

	return r
}

func (srv *server) serve(ctx context.Context) {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.stream.close()
		srv.http.Shutdown(shutdownCtx)
	}()

	log.Infof("Starting delay tracker (Version: %s)", version)
	log.Infof("Listening on %s", srv.listener.Addr())
	if err := srv.http.Serve(srv.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func (srv *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexHTML, *metricsPath, srv.interval.Milliseconds())
}

func (srv *server) handleChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := srv.chart.Render(&buf, srv.sampler.Snapshot())
	if errors.Is(err, render.ErrNoData) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		log.Errorln(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (srv *server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(srv.sampler.Snapshot()); err != nil {
		log.Errorf("could not encode snapshot: %v", err)
	}
}

const indexHTML = `<!doctype html>
<html>
<head>
	<meta charset="UTF-8">
	<title>Delay Tracker (Version ` + version + `)</title>
</head>
<body>
	<h1>Delay Tracker</h1>
	<p><img id="chart" src="chart.png" alt="waiting for samples"></p>
	<p><a href="%s">Metrics</a> | <a href="api/snapshot">Snapshot</a></p>
	<script>
		setInterval(function() {
			document.getElementById("chart").src = "chart.png?" + Date.now();
		}, %d);
	</script>
</body>
</html>
`
