package prof

// Options selects the profiles of a run. Empty paths are skipped.
type Options struct {
	CPU   string // Streamed from Start until Stop
	Heap  string // Snapshot written by Stop
	Block string // Snapshot written by Stop; sampling enabled by Start
	Mutex string // Snapshot written by Stop; sampling enabled by Start
}

// Enabled reports whether any profile is requested.
func (o Options) Enabled() bool {
	return o.CPU != "" || o.Heap != "" || o.Block != "" || o.Mutex != ""
}
