// Completion: 100% - Generation context complete
package gencontext

import (
	"fmt"
	"strings"

	units "github.com/docker/go-units"
	"github.com/google/uuid"

	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/diag"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/engine"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/ir"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/isa"
	"github.com/Oichkatzelesfrettschen/frosted-beignet/internal/regalloc"
)

// Context compiles one kernel variant for one fixed generation. It is not
// safe for concurrent use; compile independent kernels with their own
// contexts.
type Context struct {
	ID        uuid.UUID
	Gen       engine.Generation
	Device    engine.Device
	SIMDWidth int

	kernel *ir.Kernel
	opts   *engine.Options
	v      variant
	trace  *diag.Tracer
}

// New builds the context of kernel k on generation g. A nil opts means
// engine.DefaultOptions.
func New(g engine.Generation, k *ir.Kernel, opts *engine.Options) (*Context, error) {
	if opts == nil {
		def := engine.DefaultOptions()
		opts = &def
	}
	v, err := variantFor(g)
	if err != nil {
		return nil, err
	}
	dev, err := engine.DeviceFor(g)
	if err != nil {
		return nil, diag.Config("%v", err)
	}
	c := &Context{
		ID:     uuid.New(),
		Gen:    g,
		Device: dev,
		kernel: k,
		opts:   opts,
		v:      v,
	}
	c.trace = diag.NewTracer(opts.Log, opts.Verbose).With(fmt.Sprintf("%s/%s %s", k.Name, g, c.variant()))

	width := k.SIMDWidth
	if opts.SIMDWidth != 0 {
		width = opts.SIMDWidth
	}
	if width != 8 && width != 16 {
		return nil, c.wrap(diag.Config("SIMD width %d is not supported", width).
			WithSuggestion("compile with a SIMD width of 8 or 16"))
	}
	if width > dev.MaxSIMD {
		width = dev.MaxSIMD
	}
	if g == engine.Gen6 && width > 8 {
		c.trace.Printf("clamping SIMD%d to SIMD8", width)
		width = 8
	}
	c.SIMDWidth = width

	if k.StackSize > opts.MaxStackSize {
		return nil, c.wrap(diag.Config("kernel needs %s of stack per lane, the limit is %s",
			units.BytesSize(float64(k.StackSize)), units.BytesSize(float64(opts.MaxStackSize))).
			WithHelp("raise GBE_MAX_STACK_SIZE"))
	}
	return c, nil
}

// Supports reports whether the target generation has feature f
func (c *Context) Supports(f engine.Feature) bool {
	return engine.Supports(c.Gen, f)
}

// Kernel returns the kernel the context compiles
func (c *Context) Kernel() *ir.Kernel {
	return c.kernel
}

func (c *Context) variant() string {
	return strings.SplitN(c.ID.String(), "-", 2)[0]
}

func (c *Context) location() diag.Location {
	loc := diag.Nowhere()
	loc.Kernel = c.kernel.Name
	loc.Variant = c.variant()
	loc.Generation = c.Gen.String()
	return loc
}

// wrap fills the context's kernel, variant and generation into err
func (c *Context) wrap(err error) error {
	return diag.WithLocation(err, c.location())
}

func atInstruction(err error, pos int) error {
	loc := diag.Nowhere()
	loc.Instruction = pos
	return diag.WithLocation(err, loc)
}

// Compile selects, allocates, emits and fixes up the kernel
func (c *Context) Compile() (*Program, error) {
	sel, err := c.Select()
	if err != nil {
		return nil, c.wrap(err)
	}
	c.trace.Printf("selected %d instructions", len(sel.Instructions))

	alloc, err := regalloc.Allocate(sel, regalloc.Config{
		FileSize:     c.Device.RegisterFileBytes,
		ReservedLow:  isa.GRFSize,
		HoleReuse:    c.opts.HoleReuse,
		Policy:       c.opts.SpillPolicy,
		ScratchLimit: c.Device.ScratchPerThread,
		Tracer:       c.trace.With("regalloc"),
	})
	if err != nil {
		return nil, c.wrap(err)
	}
	scratch := engine.AlignScratchSize(c.Gen, alloc.ScratchSize)
	if scratch > c.Device.ScratchPerThread {
		return nil, c.wrap(diag.Allocation(diag.NoIndex, "%s of spill scratch exceeds the %s budget of %s",
			units.BytesSize(float64(scratch)), units.BytesSize(float64(c.Device.ScratchPerThread)), c.Device.Name))
	}
	if alloc.Spills > 0 {
		c.trace.Printf("%d spills, %s of scratch per thread", alloc.Spills, units.BytesSize(float64(scratch)))
	}

	words, err := c.emit(alloc)
	if err != nil {
		return nil, c.wrap(err)
	}
	return &Program{
		Kernel:      c.kernel.Name,
		Generation:  c.Gen,
		Variant:     c.ID,
		SIMDWidth:   c.SIMDWidth,
		Words:       words,
		ScratchSize: scratch,
		StackSize:   c.kernel.StackSize,
		Allocation:  alloc,
	}, nil
}

func (c *Context) String() string {
	return fmt.Sprintf("%s context %s for kernel %s (SIMD%d)", c.Gen, c.variant(), c.kernel.Name, c.SIMDWidth)
}
