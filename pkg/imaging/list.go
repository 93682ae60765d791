package imaging

import (
	"errors"
	"sync"
)

// ErrEmptyList is returned when a list is built without images.
var ErrEmptyList = errors.New("imaging: empty image list")

// List is an ordered sequence of images with a current position. It is
// safe for concurrent readers once built; statistics are computed lazily,
// once per image.
type List struct {
	images  []Image
	current int
	stats   []listStats
}

type listStats struct {
	once  sync.Once
	stats *Statistics
}

// NewList builds a list whose current image is the first one.
func NewList(images ...Image) (*List, error) {
	if len(images) == 0 {
		return nil, ErrEmptyList
	}
	return &List{
		images: images,
		stats:  make([]listStats, len(images)),
	}, nil
}

// SetCurrent moves the current position. Out-of-range indices wrap.
func (l *List) SetCurrent(index int) {
	l.current = l.Wrap(index)
}

// Len returns the number of images.
func (l *List) Len() int { return len(l.images) }

// Current returns the index of the current image.
func (l *List) Current() int { return l.current }

// Wrap maps any integer onto a valid index: negative indices count from
// the end and large ones wrap around.
func (l *List) Wrap(index int) int {
	n := len(l.images)
	index %= n
	if index < 0 {
		index += n
	}
	return index
}

// Image returns the image at a wrapped index.
func (l *List) Image(index int) Image {
	return l.images[l.Wrap(index)]
}

// Pixel samples image index at a possibly fractional coordinate.
func (l *List) Pixel(index int, x, y float64) Pixel {
	return Interpolate(l.Image(index), x, y)
}

// Statistics returns the statistics of image index, computing them on
// first use.
func (l *List) Statistics(index int) *Statistics {
	s := &l.stats[l.Wrap(index)]
	s.once.Do(func() {
		s.stats = ComputeStatistics(l.Image(index))
	})
	return s.stats
}
