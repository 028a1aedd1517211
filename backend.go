// Completion: 100% - Public backend complete

// Package beignet compiles selected GPU kernels into the native instruction
// words of Intel Gen6 to Gen9 hardware.
package beignet

import (
	"errors"
	"sync"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/gencontext"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
)

// Program is a compiled kernel variant
type Program = gencontext.Program

// Backend is the interface every generation backend implements
type Backend interface {
	Target() Target
	Supports(f engine.Feature) bool
	Compile(k *ir.Kernel) (*Program, error)
}

type backend struct {
	target Target
	opts   engine.Options
}

// NewBackend creates the backend of generation g. A nil opts uses
// engine.DefaultOptions.
func NewBackend(g engine.Generation, opts *engine.Options) (Backend, error) {
	t, err := NewTarget(g)
	if err != nil {
		return nil, err
	}
	o := engine.DefaultOptions()
	if opts != nil {
		o = *opts
	}
	return &backend{target: t, opts: o}, nil
}

func (b *backend) Target() Target {
	return b.target
}

func (b *backend) Supports(f engine.Feature) bool {
	return engine.Supports(b.target.Gen, f)
}

// Compile runs one generation context over k. Every call gets its own
// context so a backend may compile several kernels at once.
func (b *backend) Compile(k *ir.Kernel) (*Program, error) {
	c, err := gencontext.New(b.target.Gen, k, &b.opts)
	if err != nil {
		return nil, err
	}
	return c.Compile()
}

// Compile compiles k for generation g
func Compile(g engine.Generation, k *ir.Kernel, opts *engine.Options) (*Program, error) {
	b, err := NewBackend(g, opts)
	if err != nil {
		return nil, err
	}
	return b.Compile(k)
}

// ParseGeneration accepts generation numbers and codenames such as "gen7.5",
// "skl" or "cherryview"
func ParseGeneration(s string) (engine.Generation, error) {
	return engine.ParseGeneration(s)
}

// CompileAll compiles k for every generation in gens concurrently. Programs
// that compiled are returned by generation; every failure is recorded in
// the collector, whose Err is the first of them in gens order.
func CompileAll(k *ir.Kernel, gens []engine.Generation, opts *engine.Options) (map[engine.Generation]*Program, *diag.ErrorCollector) {
	programs := make([]*Program, len(gens))
	errs := make([]error, len(gens))
	var wg sync.WaitGroup
	for i, g := range gens {
		i, g := i, g
		wg.Add(1)
		go func() {
			defer wg.Done()
			programs[i], errs[i] = Compile(g, k, opts)
		}()
	}
	wg.Wait()

	out := make(map[engine.Generation]*Program, len(gens))
	ec := diag.NewErrorCollector(len(gens))
	for i, g := range gens {
		if errs[i] != nil {
			ec.AddError(asCompilerError(errs[i], g))
			continue
		}
		out[g] = programs[i]
		if programs[i].SIMDWidth < k.SIMDWidth {
			loc := diag.Nowhere()
			loc.Kernel = k.Name
			loc.Generation = g.String()
			ec.Warnf(loc, "compiled at SIMD%d instead of SIMD%d", programs[i].SIMDWidth, k.SIMDWidth)
		}
	}
	return out, ec
}

func asCompilerError(err error, g engine.Generation) diag.CompilerError {
	loc := diag.Nowhere()
	loc.Generation = g.String()
	var ce diag.CompilerError
	errors.As(diag.WithLocation(err, loc), &ce)
	return ce
}
