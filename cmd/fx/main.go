// fx CLI - applies a per-pixel expression to images
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/pixfx/compiler"
	"github.com/chazu/pixfx/fx"
	"github.com/chazu/pixfx/manifest"
	"github.com/chazu/pixfx/pkg/bytecode"
	"github.com/chazu/pixfx/pkg/imaging"
	"github.com/chazu/pixfx/server"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// flags holds the parsed command line.
type flags struct {
	expr     string
	output   string
	print    bool
	disasm   bool
	save     string
	load     string
	threads  int
	seed     uint64
	shared   bool
	channels string
	current  int
	maxSteps int
	config   string
	init     bool
	progress bool
	lsp      bool
	verbose  bool

	set map[string]bool // flags given explicitly
}

func parseFlags(args []string, stderr io.Writer) (*flags, []string, error) {
	f := &flags{set: make(map[string]bool)}
	fs := flag.NewFlagSet("fx", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.expr, "e", "", "Expression, or @file to read it from")
	fs.StringVar(&f.output, "o", "", "Output image (.png, .tif/.tiff)")
	fs.BoolVar(&f.print, "print", false, "Evaluate once at (0,0) on the gray channel and print the result")
	fs.BoolVar(&f.disasm, "disasm", false, "Print the compiled program")
	fs.StringVar(&f.save, "save", "", "Write the compiled program to a file")
	fs.StringVar(&f.load, "load", "", "Read a compiled program instead of -e")
	fs.IntVar(&f.threads, "threads", 0, "Worker limit (0 = GOMAXPROCS)")
	fs.Uint64Var(&f.seed, "seed", 0, "Random seed")
	fs.BoolVar(&f.shared, "shared-random", false, "Draw rand() from one generator shared by all workers")
	fs.StringVar(&f.channels, "channels", "", "Channels to evaluate, e.g. rgb, rgba, k or red,alpha")
	fs.IntVar(&f.current, "current", 0, "Index of the current image (s, t); negative counts from the end")
	fs.IntVar(&f.maxSteps, "max-steps", 0, "Jump budget per evaluation (0 = default)")
	fs.StringVar(&f.config, "config", "", "Directory holding fx.toml (default: search upwards)")
	fs.BoolVar(&f.init, "init", false, "Write a default fx.toml to the current directory")
	fs.BoolVar(&f.progress, "progress", false, "Report progress on stderr")
	fs.BoolVar(&f.lsp, "lsp", false, "Run the language server on stdio")
	fs.BoolVar(&f.verbose, "v", false, "Verbose output")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: fx [options] -e EXPR [input ...]\n\n")
		fmt.Fprintf(stderr, "Evaluates EXPR for every pixel of the current input image (the first unless -current is given).\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  fx -e 'u*0.5' -o dim.png in.png          # Halve every channel\n")
		fmt.Fprintf(stderr, "  fx -e '(u+v)/2' -o mix.png a.png b.png   # Average two images\n")
		fmt.Fprintf(stderr, "  fx -e 's*0.5' -current 1 -o dim.png a.png b.png  # Halve the second image\n")
		fmt.Fprintf(stderr, "  fx -print -e 'pi*2'                     # Evaluate a constant expression\n")
		fmt.Fprintf(stderr, "  fx -disasm -e 'u.r > 0.5 ? 1 : 0'       # Show the compiled program\n")
		fmt.Fprintf(stderr, "  fx -lsp                                 # Start the language server\n")
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, fs.Args(), nil
}

func run(args []string, stdout, stderr io.Writer) int {
	f, inputs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if f.init {
		if err := manifest.Write(".", manifest.Default()); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Wrote %s\n", manifest.FileName)
		return 0
	}

	m, err := loadManifest(f.config)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	verbosity := m.Log.Verbosity
	if f.verbose {
		verbosity = max(verbosity, 1)
	}
	commonlog.Configure(verbosity, m.LogPath())

	if f.lsp {
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(stderr, "LSP error: %v\n", err)
			return 1
		}
		return 0
	}

	opts, err := options(m, f)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	list, err := loadList(inputs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	list.SetCurrent(f.current)

	p, err := program(f, list, opts)
	if err != nil {
		var ce *compiler.Error
		if errors.As(err, &ce) {
			fmt.Fprint(stderr, ce.Snippet())
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}

	if f.save != "" {
		data, err := bytecode.MarshalProgram(p)
		if err == nil {
			err = os.WriteFile(f.save, data, 0o644)
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	if f.disasm {
		fmt.Fprint(stdout, p.Disassemble())
	}
	if f.print {
		v, err := fx.EvaluateProgram(list, p, opts)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, strconv.FormatFloat(v, 'g', -1, 64))
	}

	if f.output == "" {
		if !f.print && !f.disasm && f.save == "" {
			fmt.Fprintln(stderr, "Error: no output; use -o, -print, -disasm or -save")
			return 2
		}
		return 0
	}
	if len(inputs) == 0 {
		fmt.Fprintln(stderr, "Error: -o needs at least one input image")
		return 2
	}

	if f.progress {
		opts.Monitor = func(done, total int) bool {
			fmt.Fprintf(stderr, "\rfx: %d/%d rows", done, total)
			if done == total {
				fmt.Fprintln(stderr)
			}
			return true
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := fx.Run(ctx, list, p, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if f.verbose {
		fmt.Fprintf(stderr, "fx: %d rows on %d workers in %s\n", res.Rows, res.Workers, res.Elapsed)
	}

	if err := saveImage(f.output, formatFor(f.output, m.Output.Format), res.Image); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadManifest reads fx.toml from dir, or searches upwards from the
// working directory when dir is empty.
func loadManifest(dir string) (*manifest.Manifest, error) {
	var (
		m   *manifest.Manifest
		err error
	)
	if dir != "" {
		m, err = manifest.Load(dir)
	} else {
		m, err = manifest.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

// options merges fx.toml settings with explicitly given flags.
func options(m *manifest.Manifest, f *flags) (fx.Options, error) {
	opts, err := m.Options()
	if err != nil {
		return opts, err
	}
	if f.set["threads"] {
		opts.Threads = f.threads
	}
	if f.set["seed"] {
		opts.Seed = f.seed
	}
	if f.set["shared-random"] {
		opts.SharedRandom = f.shared
	}
	if f.set["max-steps"] {
		opts.MaxSteps = f.maxSteps
	}
	if f.set["channels"] {
		if opts.Channels, err = fx.ParseChannels(f.channels); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// loadList decodes the input images. Without inputs the list holds a
// single black pixel.
func loadList(paths []string) (*imaging.List, error) {
	if len(paths) == 0 {
		return imaging.NewList(imaging.NewMemory(1, 1, imaging.RGBColorspace))
	}
	images := make([]imaging.Image, 0, len(paths))
	for _, path := range paths {
		img, err := loadImage(path)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return imaging.NewList(images...)
}

// program compiles -e or reads -load.
func program(f *flags, list *imaging.List, opts fx.Options) (*bytecode.Program, error) {
	switch {
	case f.load != "" && f.expr != "":
		return nil, errors.New("-e and -load are mutually exclusive")
	case f.load != "":
		data, err := os.ReadFile(f.load)
		if err != nil {
			return nil, err
		}
		return bytecode.UnmarshalProgram(data)
	case f.expr == "":
		return nil, errors.New("no expression; use -e or -load")
	}
	expr, err := fx.LoadExpression(f.expr)
	if err != nil {
		return nil, err
	}
	return fx.Compile(list, expr, opts)
}
