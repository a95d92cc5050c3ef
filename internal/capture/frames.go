package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// FrameBuffer keeps the most recent frame as JPEG for preview streams.
// Frames are only encoded while at least one viewer is watching.
type FrameBuffer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	jpeg    []byte
	seq     uint64
	viewers int
	closed  bool
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	b := &FrameBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Watching reports whether anyone wants frames.
func (b *FrameBuffer) Watching() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewers > 0
}

// Watch registers a viewer. Call the returned function when done.
func (b *FrameBuffer) Watch() (release func()) {
	b.mu.Lock()
	b.viewers++
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.viewers--
			b.mu.Unlock()
			b.cond.Broadcast()
		})
	}
}

// Publish encodes frame as JPEG when someone is watching. The frame is not
// retained.
func (b *FrameBuffer) Publish(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() || !b.Watching() {
		return nil
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return err
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	b.Set(data)
	return nil
}

// Set stores an already encoded JPEG.
func (b *FrameBuffer) Set(jpeg []byte) {
	b.mu.Lock()
	b.jpeg = jpeg
	b.seq++
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Next blocks until a frame newer than after is available and returns it
// with its sequence number. ok is false once the buffer is closed or the
// abort channel fires.
func (b *FrameBuffer) Next(after uint64, abort <-chan struct{}) (jpeg []byte, seq uint64, ok bool) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-abort:
			// Taking the lock guarantees the waiter is parked in Wait.
			b.mu.Lock()
			b.mu.Unlock()
			b.cond.Broadcast()
		case <-stop:
		}
	}()

	b.mu.Lock()
	defer b.mu.Unlock()
	for b.seq <= after && !b.closed {
		select {
		case <-abort:
			return nil, after, false
		default:
		}
		b.cond.Wait()
	}
	if b.closed {
		return nil, after, false
	}
	return b.jpeg, b.seq, true
}

// Close wakes all waiting viewers.
func (b *FrameBuffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}
