package indicator

// window keeps the most recent size values in arrival order. The backing
// slice grows to 2*size before the tail is compacted to the front, so push
// is amortised O(1) and values never allocates.
type window[T any] struct {
	size int
	buf  []T
}

func newWindow[T any](size int) *window[T] {
	if size < 1 {
		size = 1
	}
	return &window[T]{size: size, buf: make([]T, 0, 2*size)}
}

func (w *window[T]) push(v T) {
	w.buf = append(w.buf, v)
	if len(w.buf) > 2*w.size {
		w.buf = append(w.buf[:0], w.buf[len(w.buf)-w.size:]...)
	}
}

// values returns the retained tail. The slice is only valid until the next push.
func (w *window[T]) values() []T {
	if len(w.buf) > w.size {
		return w.buf[len(w.buf)-w.size:]
	}
	return w.buf
}

// withNext returns a fresh copy of the retained tail plus v, leaving w untouched.
func (w *window[T]) withNext(v T) []T {
	cur := w.values()
	out := make([]T, len(cur), len(cur)+1)
	copy(out, cur)
	return append(out, v)
}

func (w *window[T]) len() int { return len(w.values()) }

func (w *window[T]) snapshot() []T {
	cur := w.values()
	out := make([]T, len(cur))
	copy(out, cur)
	return out
}

func (w *window[T]) restore(vals []T) {
	w.buf = w.buf[:0]
	if len(vals) > w.size {
		vals = vals[len(vals)-w.size:]
	}
	w.buf = append(w.buf, vals...)
}

func (w *window[T]) reset() { w.buf = w.buf[:0] }
