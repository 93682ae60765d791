// Package bytecode provides the compiled form of fx expressions and the
// stack machine that evaluates it once per pixel and channel.
//
// # Architecture Overview
//
// The bytecode system consists of several components:
//
//   - Opcodes: one increasing enumeration covering operators, literals,
//     named constants, functions, image attributes, pixel symbols and
//     controls. An opcode's kind is a range check; its name, arity and
//     operator precedence come from an immutable table.
//
//   - Program: a flat list of Elements plus the user variable table and
//     the statically computed stack bound. Jumps address other elements
//     by index. Programs are produced by the compiler package, never
//     mutated afterwards, and can be serialized with MarshalProgram.
//
//   - Runtime: per-worker state (operand stack, variable values, random
//     source, current-pixel cache). Runtimes share a Program read-only;
//     each must be owned by a single goroutine.
//
// # Evaluation
//
// Runtime.Execute scans the element list once. Each element pops its
// operands into registers in push order, computes, and optionally pushes
// a result. Controls implement the ternary operator, if, while, do and
// for by jumping; ZeroStack discards the values of finished statements.
// A well-formed program leaves exactly one value.
//
// Division by zero leaves the dividend unchanged, as does modulus by a
// divisor that rounds to zero. Comparisons for equality and truth use
// Epsilon. Bitwise and shift operators round their operands to integers.
//
// # Example
//
//	prog, _ := compiler.Compile("u.r * 0.5 + 0.25", compiler.Options{})
//	rt := bytecode.NewRuntime(prog, list)
//	v, err := rt.Execute(imaging.RedChannel, x, y)
package bytecode
