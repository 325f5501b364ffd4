// Package prof captures pprof profiles of an xspictl run.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/xspictl
//	xspictl --cpuprofile cpu.prof --blockprofile block.prof verify 0 65536
//
// Without the tag [Start] accepts only empty [Options] and returns
// [pkg.ErrNotSupported] otherwise, so callers can leave profiling flags in
// place at no cost.
//
// The block profile shows time spent waiting for the controller's transfer
// token and for DMA completion; the mutex profile shows contention on the
// register model and pin mux locks.
package prof
