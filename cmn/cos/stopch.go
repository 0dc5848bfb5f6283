package cos

import "sync"

// StopCh is a one-shot, broadcast stop signal: Close is idempotent and every
// goroutine blocked on Listen wakes up exactly once, whether it called Listen
// before or after Close. recv.Group and every ringbuf.Ring use one of these
// instead of a plain `chan struct{}` so Stop() can be called from multiple
// goroutines without a second close panicking.
type StopCh struct {
	once sync.Once
	ch   chan struct{}
}

func (sc *StopCh) Init() {
	sc.once = sync.Once{}
	sc.ch = make(chan struct{})
}

// Listen returns a channel that closes exactly once, when Close is first called.
func (sc *StopCh) Listen() <-chan struct{} { return sc.ch }

func (sc *StopCh) Close() {
	sc.once.Do(func() { close(sc.ch) })
}

func (sc *StopCh) IsStopped() bool {
	select {
	case <-sc.ch:
		return true
	default:
		return false
	}
}
