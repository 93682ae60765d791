package compiler

import (
	"errors"
	"testing"

	"github.com/chazu/pixfx/pkg/bytecode"
	"github.com/chazu/pixfx/pkg/imaging"
)

// ---------------------------------------------------------------------------
// FuzzCompile: the compiler never panics, and whatever it accepts is a
// valid program that evaluates without corrupting the stack.
// ---------------------------------------------------------------------------

func FuzzCompile(f *testing.F) {
	seeds := []string{
		// Literals
		`42`, `.5`, `1e3`, `2Ki`, `4KB`, `0x1f`, `#f00`, `#ff000080`,
		// Names
		`pi`, `e`, `w`, `u`, `u.r`, `v.mean.g`, `u[1].p[1,0]`, `p{0,0}.alpha`,
		`page.width`, `red`, `gray47`, `rgb(1,2,3)`, `hsl(120,50%,50%)`,
		// Operators
		`1+2*3`, `(1+2)*3`, `-2^2`, `!~1`, `1<<3>>1`, `1 && 0 || 1`,
		`1 ? 2 : 3`, `1 ? 0 ? 1 : 2 : 3`,
		// Statements and variables
		`a=1;a+=2;a++`, `x = y = 3; x*y`, `1;2;`,
		// Control flow
		`if(1,2,3)`, `while(0,1)`, `do(1,0)`, `for(i=0,i<3,i++)`,
		`for(i=0,i<3,i++,s+=i)`, `channel(1,2)`, `debug(u)`,
		// Edge cases
		``, `(`, `)`, `?`, `:`, `;`, `,`, `u.`, `p[`, `%[`, `#`, `=`,
		`a++ +`, `if(`, `for(,,)`, `1e`, `0x`,
		// Operator soup
		`+-*/%^<>=!&|~?:;,.`,
	}
	for _, s := range seeds {
		f.Add(s)
	}

	l, _ := imaging.NewList(imaging.NewMemory(2, 2, imaging.RGBColorspace))

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("compiler panicked on input %q: %v", data, r)
			}
		}()

		p, err := Compile(data, Options{})
		if err != nil {
			return
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("Compile(%q) produced an invalid program: %v", data, err)
		}
		rt := bytecode.NewRuntime(p, l, bytecode.WithMaxSteps(10000))
		_, err = rt.Execute(imaging.RedChannel, 1, 1)
		for _, bad := range []error{bytecode.ErrStackUnderflow, bytecode.ErrStackOverflow, bytecode.ErrUnbalancedStack, bytecode.ErrBadAddress} {
			if errors.Is(err, bad) {
				t.Fatalf("Execute(%q): %v", data, err)
			}
		}
	})
}
