package stream

// Batcher groups frames of one session into numbered batches.
type Batcher struct {
	session string
	fps     float64
	size    int
	seq     uint64
	frames  []Frame
}

// NewBatcher creates a batcher emitting size frames per batch.
func NewBatcher(session string, fps float64, size int) *Batcher {
	if size < 1 {
		size = 1
	}
	return &Batcher{session: session, fps: fps, size: size}
}

// Add appends f and returns a full batch once size frames are pending.
func (b *Batcher) Add(f Frame) (FrameBatch, bool) {
	b.frames = append(b.frames, f)
	if len(b.frames) < b.size {
		return FrameBatch{}, false
	}
	return b.Flush()
}

// Flush returns the pending frames, if any, as a batch.
func (b *Batcher) Flush() (FrameBatch, bool) {
	if len(b.frames) == 0 {
		return FrameBatch{}, false
	}
	batch := FrameBatch{
		Session: b.session,
		Seq:     b.seq,
		FPS:     b.fps,
		Frames:  b.frames,
	}
	b.seq++
	b.frames = make([]Frame, 0, b.size)
	return batch, true
}
