// Package ebpf provides the outer Map collaborator that the per-CPU perf
// ring buffer reader in package perf registers opened ring fds into.
//
// It intentionally stays thin: creating and updating a
// BPF_MAP_TYPE_PERF_EVENT_ARRAY. Loading eBPF programs, parsing ELF object
// files, or manipulating BPF instructions is out of scope for this module;
// none of that serves a ring buffer consumer.
package ebpf
