package bytecode

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/chazu/pixfx/pkg/imaging"
)

// DefaultMaxSteps bounds the number of jumps one evaluation may take.
const DefaultMaxSteps = 10_000_000

// PixelSource is the image list a program reads pixels and attributes
// from. Indices passed to it may be out of range; implementations wrap
// them.
type PixelSource interface {
	Len() int
	Current() int
	Image(index int) imaging.Image
	Pixel(index int, x, y float64) imaging.Pixel
	Statistics(index int) *imaging.Statistics
}

// Random is a source of uniform values in [0,1).
type Random interface {
	Float64() float64
}

// SharedRandom is one generator shared by several runtimes. Every draw
// takes a lock, so results depend on scheduling.
type SharedRandom struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSharedRandom creates a shared generator.
func NewSharedRandom(seed uint64) *SharedRandom {
	return &SharedRandom{rng: rand.New(rand.NewPCG(seed, 0))}
}

// Float64 draws one value.
func (s *SharedRandom) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Errors reported by Execute, wrapped in a *RuntimeError.
var (
	ErrStackUnderflow              = errors.New("stack underflow")
	ErrStackOverflow               = errors.New("stack overflow")
	ErrUnbalancedStack             = errors.New("unbalanced stack at end of program")
	ErrBadAddress                  = errors.New("jump target out of range")
	ErrNoSuchImage                 = errors.New("no such image")
	ErrShiftOverflow               = errors.New("shift count out of range")
	ErrStepLimit                   = errors.New("step limit exceeded")
	ErrColorSeparatedImageRequired = errors.New("color separated image required")
	ErrUnknownOpcode               = errors.New("unknown opcode")
)

// RuntimeError locates a failure in the element list.
type RuntimeError struct {
	Index int    // element index
	Op    Opcode // element opcode
	Err   error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("bytecode: element %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// Runtime is the per-worker evaluation state for one program. A runtime
// must only be used by one goroutine at a time; create one per worker.
type Runtime struct {
	program  *Program
	source   PixelSource
	stack    []float64
	values   []float64
	random   Random
	maxSteps int
	debug    io.Writer

	// Authentic pixel most recently read at integral coordinates.
	cached      bool
	cacheIndex  int
	cacheX      int
	cacheY      int
	cachedPixel imaging.Pixel
}

// RuntimeOption configures a runtime.
type RuntimeOption func(*Runtime)

// WithRandom makes the runtime draw from r, typically a *SharedRandom.
func WithRandom(r Random) RuntimeOption {
	return func(rt *Runtime) { rt.random = r }
}

// WithSeed gives the runtime a private generator. Distinct streams give
// independent sequences for the same seed.
func WithSeed(seed, stream uint64) RuntimeOption {
	return func(rt *Runtime) { rt.random = rand.New(rand.NewPCG(seed, stream)) }
}

// WithMaxSteps bounds the jumps per evaluation; n <= 0 selects
// DefaultMaxSteps.
func WithMaxSteps(n int) RuntimeOption {
	return func(rt *Runtime) {
		if n <= 0 {
			n = DefaultMaxSteps
		}
		rt.maxSteps = n
	}
}

// WithDebugWriter sets where debug() writes. The default is stderr.
func WithDebugWriter(w io.Writer) RuntimeOption {
	return func(rt *Runtime) { rt.debug = w }
}

// NewRuntime prepares a runtime for p reading from src.
func NewRuntime(p *Program, src PixelSource, opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		program:  p,
		source:   src,
		stack:    make([]float64, 0, p.MaxStack),
		values:   make([]float64, len(p.Variables)),
		maxSteps: DefaultMaxSteps,
		debug:    os.Stderr,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.random == nil {
		rt.random = rand.New(rand.NewPCG(0, 0))
	}
	return rt
}

// Variable returns the current value of a user variable.
func (r *Runtime) Variable(name string) (float64, bool) {
	slot, ok := r.program.LookupVariable(name)
	if !ok {
		return 0, false
	}
	return r.values[slot], true
}

// Reset clears user variables. Variables otherwise keep their values
// from one evaluation to the next.
func (r *Runtime) Reset() {
	clear(r.values)
	r.cached = false
}
