// Package sys wraps the raw syscalls the perf ring buffer consumer and its
// outer map collaborator need: perf_event_open, the PERF_EVENT_IOC_* ioctls,
// mmap/munmap, and the bpf(2) map create/update commands.
//
// Everything here is a thin shim; decoding and ring-buffer bookkeeping live
// in package perf.
package sys
