package frame

import "sync/atomic"

// ResizeFlag is the rebuild-pending flag shared between the engine and the
// window system. Setters may run on any goroutine; the engine samples it
// once per acquire and once per present.
type ResizeFlag struct {
	pending atomic.Bool
}

func (f *ResizeFlag) Set() {
	f.pending.Store(true)
}

func (f *ResizeFlag) Pending() bool {
	return f.pending.Load()
}

func (f *ResizeFlag) clear() {
	f.pending.Store(false)
}
