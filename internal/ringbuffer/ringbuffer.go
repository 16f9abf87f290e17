// Package ringbuffer implements a fixed-capacity, overwrite-on-full buffer
// for the columnar time series the engine keeps per symbol (trade prints,
// candle bars). It is a plain-Go reimplementation of the source's
// RingBufferjit: same left/right index bookkeeping, no numba/jitclass
// equivalent needed since Go already compiles this to a tight loop.
package ringbuffer

import "fmt"

// RingBuffer holds fixed-width float64 rows (one row per sample, `columns`
// values per row) in a flat backing array addressed the same way the
// source's left/right indices do: right_index - left_index is the current
// length; fixIndices keeps the left index within [0, capacity), and the
// right index (left plus length) is reduced modulo capacity when a row is
// addressed.
type RingBuffer struct {
	arr            []float64
	columns        int
	capacity       int
	left           int
	right          int
	allowOverwrite bool
}

// New returns an empty buffer holding up to capacity rows of the given
// column width. If allowOverwrite is false, Append on a full buffer panics
// with the same "append to a full RingBuffer with overwrite disabled"
// condition the source raises as an IndexError.
func New(capacity, columns int, allowOverwrite bool) *RingBuffer {
	if capacity <= 0 {
		panic("ringbuffer: capacity must be positive")
	}
	if columns <= 0 {
		columns = 1
	}
	return &RingBuffer{
		arr:            make([]float64, capacity*columns),
		columns:        columns,
		capacity:       capacity,
		allowOverwrite: allowOverwrite,
	}
}

// Len returns the number of rows currently stored.
func (r *RingBuffer) Len() int {
	return r.right - r.left
}

// IsFull reports whether the buffer holds capacity rows.
func (r *RingBuffer) IsFull() bool {
	return r.Len() == r.capacity
}

func (r *RingBuffer) fixIndices() {
	if r.left >= r.capacity {
		r.left -= r.capacity
		r.right -= r.capacity
	} else if r.left < 0 {
		r.left += r.capacity
		r.right += r.capacity
	}
}

func (r *RingBuffer) rowAt(slot int) []float64 {
	start := (slot % r.capacity) * r.columns
	return r.arr[start : start+r.columns]
}

// Append writes value (a columns-length row) to the right end, evicting the
// oldest row when the buffer is full and overwrite is allowed.
func (r *RingBuffer) Append(value []float64) {
	if len(value) != r.columns {
		panic(fmt.Sprintf("ringbuffer: expected %d columns, got %d", r.columns, len(value)))
	}
	if r.IsFull() {
		if !r.allowOverwrite {
			panic("ringbuffer: append to a full RingBuffer with overwrite disabled")
		}
		if r.Len() == 0 {
			return
		}
		r.left++
	}
	copy(r.rowAt(r.right), value)
	r.right++
	r.fixIndices()
}

// AppendLeft writes value to the left end, evicting the newest row when the
// buffer is full and overwrite is allowed.
func (r *RingBuffer) AppendLeft(value []float64) {
	if len(value) != r.columns {
		panic(fmt.Sprintf("ringbuffer: expected %d columns, got %d", r.columns, len(value)))
	}
	if r.IsFull() {
		if !r.allowOverwrite {
			panic("ringbuffer: append to a full RingBuffer with overwrite disabled")
		}
		if r.Len() == 0 {
			return
		}
		r.right--
	}
	r.left--
	r.fixIndices()
	copy(r.rowAt(r.left), value)
}

// Pop removes and returns the rightmost (most recent) row.
func (r *RingBuffer) Pop() []float64 {
	if r.Len() == 0 {
		panic("ringbuffer: pop from an empty RingBuffer")
	}
	r.right--
	r.fixIndices()
	out := make([]float64, r.columns)
	copy(out, r.rowAt(r.right))
	return out
}

// PopLeft removes and returns the leftmost (oldest) row.
func (r *RingBuffer) PopLeft() []float64 {
	if r.Len() == 0 {
		panic("ringbuffer: pop from an empty RingBuffer")
	}
	out := make([]float64, r.columns)
	copy(out, r.rowAt(r.left))
	r.left++
	r.fixIndices()
	return out
}

// Unwrap copies the buffer's contents into row-major, oldest-first order.
func (r *RingBuffer) Unwrap() [][]float64 {
	n := r.Len()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, r.columns)
		copy(row, r.rowAt(r.left+i))
		out[i] = row
	}
	return out
}

// At returns a copy of the row at the given logical index (0 = oldest).
func (r *RingBuffer) At(i int) []float64 {
	if i < 0 || i >= r.Len() {
		panic("ringbuffer: index out of range")
	}
	row := make([]float64, r.columns)
	copy(row, r.rowAt(r.left+i))
	return row
}
