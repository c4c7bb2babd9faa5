// Command perfdump opens a perf ring buffer on every CPU of a
// BPF_MAP_TYPE_PERF_EVENT_ARRAY and prints the size of every sample it
// receives until interrupted, while exposing Prometheus counters on
// /metrics.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/newtools/ebpf"
	"github.com/newtools/ebpf/perf"
)

func main() {
	var (
		metricsAddr = flag.String("metrics-addr", ":2112", "address to serve /metrics on")
		pageCount   = flag.Int("page-count", 2, "per-CPU ring buffer size, in pages (must be a power of two)")
		bufferSize  = flag.Int("buffer-size", 4096, "capacity of each decode buffer, in bytes")
	)
	flag.Parse()

	nCPU := runtime.NumCPU()

	m, err := ebpf.NewPerfEventArray(uint32(nCPU))
	if err != nil {
		log.Fatalf("create perf event array: %v", err)
	}
	defer m.Close()

	registry := prometheus.NewRegistry()
	metrics := perf.NewMetrics(registry)

	cpus := make([]int, nCPU)
	for i := range cpus {
		cpus[i] = i
	}

	mux, err := perf.NewMultiplexer(perf.MultiplexerOptions{
		Map:        m,
		CPUs:       cpus,
		PageCount:  *pageCount,
		BufferSize: *bufferSize,
		Metrics:    metrics,
	})
	if err != nil {
		log.Fatalf("open multiplexer: %v", err)
	}

	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	log.Printf("reading %d CPUs, metrics on %s", nCPU, *metricsAddr)

	for {
		select {
		case sample, ok := <-mux.Samples:
			if !ok {
				return
			}
			log.Printf("cpu=%d bytes=%d", sample.CPU, len(sample.Data))
		case err, ok := <-mux.Errors:
			if ok {
				log.Printf("multiplexer error: %v", err)
			}
		case <-stop:
			log.Println("received interrupt, flushing and exiting")
			if err := mux.FlushAndClose(); err != nil {
				log.Printf("flush and close: %v", err)
			}
			return
		}
	}
}
