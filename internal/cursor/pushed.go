package cursor

import "github.com/wippyai/lambdajobs/il"

// FindInstructionThatPushedArg returns the instruction that pushed argument
// arg of call, counting the instance of an instance call as argument 0.
// When the argument is a delegate sequence the sequence's first
// instruction is returned. It returns nil when the producer cannot be
// found on the straight-line path before call.
func FindInstructionThatPushedArg(m *il.MethodDef, arg int, call *il.Instruction) *il.Instruction {
	if m.Body == nil {
		return nil
	}
	n := m.Body.IndexOf(call)
	if n < 0 {
		return nil
	}
	pops := EffectOf(m, call).Pops
	if arg < 0 || arg >= pops {
		return nil
	}
	return findPusher(m, n, pops-1-arg)
}

// findPusher walks back from the instruction at n looking for the producer
// of the value sitting depth slots below the top of the stack just before
// that instruction executes.
func findPusher(m *il.MethodDef, n, depth int) *il.Instruction {
	code := m.Body.Instructions
	targets := m.Body.BranchTargets()
	for i := n - 1; i >= 0; i-- {
		if d, ok := matchEndingAt(m, i); ok {
			if depth == 0 {
				return d.First()
			}
			depth--
			i = m.Body.IndexOf(d.First())
			continue
		}
		ins := code[i]
		if stopsWalk(ins) {
			return nil
		}
		if targets[ins] && !isDelegateLabel(m, i) {
			return nil
		}
		e := EffectOf(m, ins)
		if e.Pushes > depth {
			return ins
		}
		depth += e.Pops - e.Pushes
	}
	return nil
}

// isDelegateLabel reports whether the branch target at n is only the
// label closing a cached delegate sequence.
func isDelegateLabel(m *il.MethodDef, n int) bool {
	if n == 0 {
		return false
	}
	d, ok := matchEndingAt(m, n-1)
	if !ok || !d.Cached {
		return false
	}
	target := m.Body.Instructions[n]
	for _, ins := range m.Body.Instructions {
		if t, ok := ins.Operand.(*il.Instruction); ok && ins.Op.IsBranch() && t == target && !d.Contains(ins) {
			return false
		}
	}
	return true
}

func stopsWalk(ins *il.Instruction) bool {
	switch ins.Op.Flow() {
	case il.FlowBranch, il.FlowCondBranch, il.FlowReturn, il.FlowThrow:
		return true
	}
	return ins.Op == il.Switch
}

// SpanStart returns the first instruction of the straight-line span that
// computes the value pushed by ins. For ldarg.0 ; ldfld f it returns the
// ldarg.0.
func SpanStart(m *il.MethodDef, ins *il.Instruction) *il.Instruction {
	for {
		if d, ok := MatchDelegatePattern(m, ins, MatchStart); ok {
			return d.First()
		}
		e := EffectOf(m, ins)
		if e.Pops == 0 {
			return ins
		}
		deepest := FindInstructionThatPushedArg(m, 0, ins)
		if deepest == nil {
			return nil
		}
		ins = deepest
	}
}

// Consumer is the instruction that pops a value and the argument position
// the value fills.
type Consumer struct {
	Instruction *il.Instruction
	Arg         int
}

// FindConsumer walks forward from producer to the instruction that pops
// the value producer pushed. Delegate sequences are crossed as a unit. It
// returns false when a branch intervenes or the body ends.
func FindConsumer(m *il.MethodDef, producer *il.Instruction) (Consumer, bool) {
	if m.Body == nil {
		return Consumer{}, false
	}
	code := m.Body.Instructions
	n := m.Body.IndexOf(producer)
	if n < 0 {
		return Consumer{}, false
	}
	if d, ok := matchStartingAt(m, n); ok {
		n = m.Body.IndexOf(d.Last())
	}
	depth := 0
	for i := n + 1; i < len(code); i++ {
		if d, ok := matchStartingAt(m, i); ok {
			depth++
			i = m.Body.IndexOf(d.Last())
			continue
		}
		ins := code[i]
		e := EffectOf(m, ins)
		if e.Pops > depth {
			return Consumer{Instruction: ins, Arg: e.Pops - 1 - depth}, true
		}
		if stopsWalk(ins) {
			return Consumer{}, false
		}
		depth += e.Pushes - e.Pops
	}
	return Consumer{}, false
}
