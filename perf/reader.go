package perf

import "sync/atomic"

// Events summarizes the outcome of a single ReadEvents call: Read is the
// number of SAMPLE records delivered into the caller's buffers, Lost is the
// total of all LOST record counts encountered during the drain.
type Events struct {
	Read int
	Lost int
}

// ReadEvents drains the ring from the current data_tail up to the data_head
// snapshotted at entry, stopping when the ring is exhausted, the output
// buffers are exhausted, or the capacity protocol below short-circuits.
//
// outBufs must be non-empty; ReadEvents never blocks and performs only
// userspace memory accesses.
//
// Capacity protocol: if a SAMPLE record's declared length exceeds the
// capacity of the next free output buffer, and at least one sample has
// already been delivered this call, the drain stops and returns
// successfully without advancing the tail past the oversize record — it
// will be re-decoded on the next call. If no sample has been delivered yet
// this call, ReadEvents instead publishes the tail unchanged and returns
// MoreSpaceNeeded; any LOST counts accumulated so far in this call are
// discarded, since no tail advance occurred to absorb them. This matches
// the reference implementation and is intentional, not a missing feature.
func (r *Ring) ReadEvents(outBufs [][]byte) (Events, error) {
	if len(outBufs) == 0 {
		return Events{}, ErrNoBuffers
	}

	head := atomic.LoadUint64(&r.meta.Data_head)
	tail := atomic.LoadUint64(&r.meta.Data_tail)
	startTail := tail

	var events Events
	bufN := 0

loop:
	for tail != head && bufN < len(outBufs) {
		hdr := r.readHeader(tail)

		switch hdr.Type {
		case recordTypeSample:
			n := r.readUint32(tail + headerSize)
			buf := outBufs[bufN]

			if int(n) > cap(buf) {
				if events.Read > 0 {
					break loop
				}
				r.publishTail(startTail)
				return Events{}, &MoreSpaceNeeded{Size: int(n)}
			}

			buf = buf[:n]
			r.copyPayload(buf, tail+headerSize+sampleLenSize)
			outBufs[bufN] = buf
			bufN++
			events.Read++

		case recordTypeLost:
			events.Lost += int(r.readUint64(tail + headerSize + lostIDSize))
		}

		tail += uint64(hdr.Size)
	}

	r.publishTail(tail)
	return events, nil
}

// publishTail stores data_tail with atomic.StoreUint64, telling the kernel
// that every payload read up to tail has completed. No separate fence is
// issued: Go's atomics are sequentially consistent, so the store is visible
// no earlier than the loads and copies that precede it in program order,
// which is at least the release ordering the kernel writer relies on.
func (r *Ring) publishTail(tail uint64) {
	atomic.StoreUint64(&r.meta.Data_tail, tail)
}
