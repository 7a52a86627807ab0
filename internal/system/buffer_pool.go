package system

import (
	"image"
	"sync"
	"sync/atomic"
)

// FramePool recycles RGBA frames by size. Frames of equal size share one
// pool whatever their origin.
type FramePool struct {
	mu        sync.Mutex
	sizes     map[image.Point]*sync.Pool
	allocated atomic.Int64
}

// NewFramePool returns an empty pool.
func NewFramePool() *FramePool {
	return &FramePool{sizes: make(map[image.Point]*sync.Pool)}
}

var frames = NewFramePool()

// GetImage takes a cleared frame with bounds rect from the shared pool.
func GetImage(rect image.Rectangle) *image.RGBA {
	return frames.Get(rect)
}

// PutImage hands img back to the shared pool.
func PutImage(img *image.RGBA) {
	frames.Put(img)
}

func (p *FramePool) sized(size image.Point) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pool, ok := p.sizes[size]
	if !ok {
		pool = &sync.Pool{}
		p.sizes[size] = pool
	}
	return pool
}

// Get returns a transparent frame covering rect, reusing a returned frame of
// the same size when one is available.
func (p *FramePool) Get(rect image.Rectangle) *image.RGBA {
	img, _ := p.sized(rect.Size()).Get().(*image.RGBA)
	if img == nil {
		p.allocated.Add(1)
		return image.NewRGBA(rect)
	}
	clear(img.Pix)
	img.Rect = rect
	return img
}

// Put makes img available to later Gets. Empty frames are dropped.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Empty() {
		return
	}
	p.sized(img.Rect.Size()).Put(img)
}

// Allocated reports how many frames the pool has created.
func (p *FramePool) Allocated() int64 {
	return p.allocated.Load()
}

// FramesAllocated reports how many frames the shared pool has created.
func FramesAllocated() int64 {
	return frames.Allocated()
}
