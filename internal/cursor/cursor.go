package cursor

import "github.com/wippyai/lambdajobs/il"

// Effect is the number of stack values an instruction consumes and
// produces.
type Effect struct {
	Pops   int
	Pushes int
}

// Net returns pushes minus pops.
func (e Effect) Net() int {
	return e.Pushes - e.Pops
}

// EffectOf returns the stack effect of ins executed in m.
func EffectOf(m *il.MethodDef, ins *il.Instruction) Effect {
	pops, pushes := il.StackEffect(m, ins)
	return Effect{Pops: pops, Pushes: pushes}
}

// NetEffect sums the net effect of a span.
func NetEffect(m *il.MethodDef, span []*il.Instruction) int {
	return il.NetStackEffect(m, span)
}

// Cursor is a position in a method body.
type Cursor struct {
	m   *il.MethodDef
	pos int
}

// New returns a cursor positioned before the first instruction of m.
func New(m *il.MethodDef) *Cursor {
	return &Cursor{m: m, pos: -1}
}

// Method returns the method being walked.
func (c *Cursor) Method() *il.MethodDef {
	return c.m
}

func (c *Cursor) code() []*il.Instruction {
	if c.m.Body == nil {
		return nil
	}
	return c.m.Body.Instructions
}

// Index returns the current position, -1 before the first instruction and
// len(instructions) past the last.
func (c *Cursor) Index() int {
	return c.pos
}

// Current returns the instruction under the cursor, or nil when the cursor
// is outside the body.
func (c *Cursor) Current() *il.Instruction {
	code := c.code()
	if c.pos < 0 || c.pos >= len(code) {
		return nil
	}
	return code[c.pos]
}

// Next advances the cursor and reports whether it is on an instruction.
func (c *Cursor) Next() bool {
	if n := len(c.code()); c.pos < n {
		c.pos++
	}
	return c.Current() != nil
}

// Prev moves the cursor back and reports whether it is on an instruction.
func (c *Cursor) Prev() bool {
	if c.pos >= 0 {
		c.pos--
	}
	return c.Current() != nil
}

// Seek positions the cursor on ins. It reports false, leaving the cursor
// unchanged, when ins is not in the body.
func (c *Cursor) Seek(ins *il.Instruction) bool {
	for i, x := range c.code() {
		if x == ins {
			c.pos = i
			return true
		}
	}
	return false
}

// SeekIndex positions the cursor at n, clamped to the body.
func (c *Cursor) SeekIndex(n int) {
	c.pos = max(-1, min(n, len(c.code())))
}

// Effect returns the stack effect of the current instruction.
func (c *Cursor) Effect() Effect {
	ins := c.Current()
	if ins == nil {
		return Effect{}
	}
	return EffectOf(c.m, ins)
}
