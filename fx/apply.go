package fx

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chazu/pixfx/pkg/bytecode"
	"github.com/chazu/pixfx/pkg/imaging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrCanceled is returned when the Monitor stops a run.
var ErrCanceled = errors.New("fx: canceled by monitor")

// Result is the outcome of Apply.
type Result struct {
	// Image holds the evaluated channels. Rows that were not evaluated
	// keep the source pixels.
	Image *imaging.Memory

	RunID   uuid.UUID
	Rows    int // rows completed
	Workers int
	Elapsed time.Duration
}

// Failure reports the first pixel that failed to evaluate. The row it was
// on is left partially written and the remaining rows are skipped.
type Failure struct {
	Row, Column int
	Channel     imaging.Channel
	FailedRows  int
	Err         error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("fx: pixel %d,%d channel %s: %v", f.Column, f.Row, f.Channel, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Apply compiles expression and evaluates it for every pixel of the
// current image of list.
func Apply(ctx context.Context, list *imaging.List, expression string, opts Options) (*Result, error) {
	p, err := Compile(list, expression, opts)
	if err != nil {
		return nil, err
	}
	return Run(ctx, list, p, opts)
}

// Run evaluates a compiled program for every pixel of the current image
// of list. The returned Result is non-nil whenever evaluation started,
// even if it then failed.
func Run(ctx context.Context, list *imaging.List, p *bytecode.Program, opts Options) (*Result, error) {
	if list == nil || list.Len() == 0 {
		return nil, imaging.ErrEmptyList
	}
	src := list.Image(list.Current())
	out := canvas(src)
	rows, columns := src.Rows(), src.Columns()

	channels := opts.Channels
	if len(channels) == 0 {
		channels = defaultChannels(src)
	}
	if slices.Contains(channels, imaging.AlphaChannel) {
		out.SetAlpha(true)
	}

	workers := opts.Threads
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = max(1, min(workers, rows))

	var shared bytecode.Random
	if opts.SharedRandom {
		shared = bytecode.NewSharedRandom(opts.Seed)
	}

	res := &Result{Image: out, RunID: uuid.New(), Workers: workers}
	log.Infof("run %s: %q on %dx%d, %d channels, %d workers", res.RunID, p.Expression, columns, rows, len(channels), workers)
	start := time.Now()

	var (
		next      atomic.Int64
		completed atomic.Int64
		stop      atomic.Bool
		canceled  atomic.Bool

		mu      sync.Mutex
		failure *Failure
	)
	fail := func(f *Failure) {
		mu.Lock()
		defer mu.Unlock()
		if failure == nil {
			failure = f
		}
		failure.FailedRows++
		stop.Store(true)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for w := range workers {
		rt := bytecode.NewRuntime(p, list, opts.runtimeOptions(uint64(w), shared)...)
		g.Go(func() error {
			for !stop.Load() {
				if err := gctx.Err(); err != nil {
					return err
				}
				y := int(next.Add(1) - 1)
				if y >= rows {
					return nil
				}
				if f := evaluateRow(rt, out, channels, columns, y); f != nil {
					fail(f)
					return nil
				}
				done := int(completed.Add(1))
				if opts.Monitor != nil {
					mu.Lock()
					ok := opts.Monitor(done, rows)
					mu.Unlock()
					if !ok {
						canceled.Store(true)
						stop.Store(true)
					}
				}
			}
			return nil
		})
	}
	err := g.Wait()

	res.Rows = int(completed.Load())
	res.Elapsed = time.Since(start)
	switch {
	case err != nil:
		log.Errorf("run %s: %v", res.RunID, err)
		return res, err
	case failure != nil:
		log.Errorf("run %s: %v", res.RunID, failure)
		return res, failure
	case canceled.Load():
		log.Infof("run %s: canceled after %d of %d rows", res.RunID, res.Rows, rows)
		return res, ErrCanceled
	}
	log.Infof("run %s: %d rows in %s", res.RunID, res.Rows, res.Elapsed)
	return res, nil
}

// evaluateRow evaluates one row into out.
func evaluateRow(rt *bytecode.Runtime, out *imaging.Memory, channels []imaging.Channel, columns, y int) *Failure {
	for x := 0; x < columns; x++ {
		for _, c := range channels {
			v, err := rt.Execute(c, x, y)
			if err != nil {
				return &Failure{Row: y, Column: x, Channel: c, Err: err}
			}
			out.SetChannel(x, y, c, clamp(v))
		}
	}
	return nil
}

// canvas returns a writable copy of img.
func canvas(img imaging.Image) *imaging.Memory {
	if m, ok := img.(*imaging.Memory); ok {
		return m.Clone()
	}
	m := imaging.NewMemory(img.Columns(), img.Rows(), img.Colorspace())
	m.SetAlpha(img.HasAlpha())
	m.SetMetadata(img.Metadata())
	for y := 0; y < img.Rows(); y++ {
		for x := 0; x < img.Columns(); x++ {
			m.Set(x, y, img.At(x, y))
		}
	}
	return m
}

func clamp(v float64) float64 {
	switch {
	case v != v || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
