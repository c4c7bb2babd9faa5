package perf

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/newtools/ebpf"
	"github.com/newtools/ebpf/internal/sys"
)

// Sample is a decoded SAMPLE payload tagged with the CPU it was read from.
type Sample struct {
	CPU  int
	Data []byte
}

// MultiplexerOptions configures NewMultiplexer.
type MultiplexerOptions struct {
	// Map backs every Ring the Multiplexer opens.
	Map *ebpf.Map
	// CPUs lists which CPU ids to open a Ring for. The core (Reader/Ring)
	// never enumerates CPUs itself; that is this layer's job, and it
	// takes the list from the caller rather than walking
	// /sys/devices/system/cpu/online, matching the "CPU enumeration is an
	// external collaborator's concern" scoping in spec.md.
	CPUs []int
	// PageCount is passed through to Reader.Open for every CPU; zero means
	// the Reader default (2).
	PageCount int
	// BufferSize is the capacity of the output buffer freshly allocated for
	// each sample. Samples larger than this are dropped and counted in
	// LostSamples (and, when Metrics is set, in the oversize counter); they
	// are not reported on the Errors channel.
	BufferSize int
	// Metrics, if set, receives per-CPU counts of delivered samples, lost
	// events, and oversize records as the Multiplexer drains rings.
	Metrics *Metrics
}

// Multiplexer is a convenience consumer built entirely on top of Ring and
// Reader: it owns one Ring per requested CPU, epoll-waits on their fds, and
// forwards decoded samples on a channel. It never bypasses
// Ring.ReadEvents; all wrap-safe decoding and tail bookkeeping still happens
// in the core.
type Multiplexer struct {
	reader *Reader
	rings  map[int]*Ring // keyed by fd

	closeFd      int
	flushCloseFd int
	closeOnce    sync.Once
	stopWriter   chan struct{}
	closed       chan struct{}

	lostSamples uint64
	metrics     *Metrics

	Samples <-chan Sample
	Errors  <-chan error
}

// NewMultiplexer opens a Ring for every CPU in opts.CPUs and starts polling
// them in a background goroutine.
func NewMultiplexer(opts MultiplexerOptions) (mux *Multiplexer, err error) {
	if len(opts.CPUs) == 0 {
		return nil, ErrNoCpus
	}

	reader, err := NewReader(opts.Map)
	if err != nil {
		return nil, err
	}

	rings := make(map[int]*Ring, len(opts.CPUs))
	defer func() {
		if err != nil {
			for _, r := range rings {
				r.Close()
			}
		}
	}()

	var fds []int
	for _, cpu := range opts.CPUs {
		ring, err := reader.Open(cpu, opts.PageCount)
		if err != nil {
			return nil, err
		}
		rings[ring.RawFD()] = ring
		fds = append(fds, ring.RawFD())
	}

	closeFd, err := sys.NewEventFD()
	if err != nil {
		return nil, err
	}
	fds = append(fds, closeFd)

	flushCloseFd, err := sys.NewEventFD()
	if err != nil {
		sys.Close(closeFd)
		return nil, err
	}
	fds = append(fds, flushCloseFd)

	epollFd, err := sys.NewEpollFD(fds...)
	if err != nil {
		sys.Close(closeFd)
		sys.Close(flushCloseFd)
		return nil, err
	}

	samples := make(chan Sample, len(opts.CPUs))
	errs := make(chan error, 1)

	bufSize := opts.BufferSize
	if bufSize == 0 {
		bufSize = 4096
	}

	mux = &Multiplexer{
		reader:       reader,
		rings:        rings,
		closeFd:      closeFd,
		flushCloseFd: flushCloseFd,
		stopWriter:   make(chan struct{}),
		closed:       make(chan struct{}),
		metrics:      opts.Metrics,
		Samples:      samples,
		Errors:       errs,
	}

	go mux.poll(epollFd, bufSize, samples, errs)

	return mux, nil
}

// LostSamples returns the cumulative count of events the kernel reports as
// dropped across every Ring this Multiplexer owns, plus every sample the
// Multiplexer itself dropped for exceeding BufferSize.
func (mux *Multiplexer) LostSamples() uint64 {
	return atomic.LoadUint64(&mux.lostSamples)
}

// Close stops polling and discards any samples not yet sent on Samples.
func (mux *Multiplexer) Close() error { return mux.close(false) }

// FlushAndClose stops polling after draining every ring's pending records
// onto Samples. May block if nothing is reading from Samples.
func (mux *Multiplexer) FlushAndClose() error { return mux.close(true) }

func (mux *Multiplexer) close(flush bool) error {
	mux.closeOnce.Do(func() {
		if !flush {
			close(mux.stopWriter)
		}
		if flush {
			_ = sys.SignalEventFD(mux.flushCloseFd)
		} else {
			_ = sys.SignalEventFD(mux.closeFd)
		}
	})
	<-mux.closed
	return nil
}

func (mux *Multiplexer) poll(epollFd int, bufSize int, samples chan<- Sample, errs chan<- error) {
	defer close(mux.closed)
	defer close(samples)
	defer close(errs)
	defer sys.Close(epollFd)
	defer sys.Close(mux.closeFd)
	defer sys.Close(mux.flushCloseFd)
	defer func() {
		for _, r := range mux.rings {
			r.Close()
		}
	}()

	events := make([]unix.EpollEvent, len(mux.rings)+2)

	for {
		n, err := sys.EpollWait(epollFd, events)
		if err != nil {
			errs <- err
			return
		}

		for _, ev := range events[:n] {
			fd := int(ev.Fd)

			switch fd {
			case mux.closeFd:
				return
			case mux.flushCloseFd:
				if err := mux.drainAllRings(bufSize, samples); err != nil {
					errs <- err
				}
				return
			default:
				if r, ok := mux.rings[fd]; ok {
					if err := mux.drainRing(r, bufSize, samples); err != nil {
						errs <- err
						return
					}
				}
			}
		}
	}
}

// drainAllRings drains every ring this Multiplexer owns, in ring buffer
// order per ring but with no ordering guarantee across rings. Used both by
// the FlushAndClose shutdown path and directly by tests, since it performs
// no epoll or fd work of its own.
func (mux *Multiplexer) drainAllRings(bufSize int, samples chan<- Sample) error {
	for _, r := range mux.rings {
		if err := mux.drainRing(r, bufSize, samples); err != nil {
			return err
		}
	}
	return nil
}

func (mux *Multiplexer) drainRing(r *Ring, bufSize int, samples chan<- Sample) error {
	for {
		bufs := [][]byte{make([]byte, bufSize)}
		events, err := r.ReadEvents(bufs)
		if err != nil {
			if needed, ok := err.(*MoreSpaceNeeded); ok {
				// A library caller would grow its buffer and retry; the
				// Multiplexer has no larger buffer to offer its consumers,
				// so the oversize record is drained into a throwaway buffer
				// and surfaced as lost rather than stalling this ring forever.
				dropped, err := r.ReadEvents([][]byte{make([]byte, needed.Size)})
				if err != nil {
					return err
				}
				atomic.AddUint64(&mux.lostSamples, uint64(1+dropped.Lost))
				if mux.metrics != nil {
					mux.metrics.observeOversize(r.cpu)
					mux.metrics.observe(r.cpu, Events{Lost: dropped.Lost})
				}
				continue
			}
			return err
		}

		if events.Lost > 0 {
			atomic.AddUint64(&mux.lostSamples, uint64(events.Lost))
		}
		if mux.metrics != nil {
			mux.metrics.observe(r.cpu, events)
		}

		if events.Read == 0 {
			return nil
		}

		select {
		case samples <- Sample{CPU: r.cpu, Data: bufs[0]}:
		case <-mux.stopWriter:
			return nil
		}
	}
}
