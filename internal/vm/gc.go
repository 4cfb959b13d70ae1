package vm

// The collector treats every *Function the VM has allocated as one arena
// slot. There is no separate handle-table: a Go pointer already is a stable
// handle, so the arena's only job is bookkeeping (bytesAllocated, the
// doubling threshold, cycle count) and driving collection at the moments the
// original threshold-based design expects it.

const (
	// initialGCThreshold is the byte count that triggers the first
	// collection. It doubles after every cycle that doesn't bring usage
	// back under it.
	initialGCThreshold = 1 << 16
	// functionBaseSize approximates the cost of a Function allocation for
	// threshold accounting; it does not need to track Go's actual heap
	// layout, only move monotonically with real allocations.
	functionBaseSize = 64
)

// GCStats reports the collector's bookkeeping counters, surfaced through the
// embedding API and the REPL's :stats command.
type GCStats struct {
	BytesAllocated int64
	NextThreshold  int64
	CycleCount     int64
}

// SetGCStressMode forces a collection on every allocation when on, so tests
// can assert a program's output is unchanged under constant GC pressure.
func (vm *VM) SetGCStressMode(on bool) {
	vm.gcStress = on
}

// GCStats returns a snapshot of the collector's current counters.
func (vm *VM) GCStats() GCStats {
	return GCStats{
		BytesAllocated: vm.bytesAllocated,
		NextThreshold:  vm.nextGC,
		CycleCount:     vm.gcCycles,
	}
}

func functionSize(fn *Function) int64 {
	return functionBaseSize + int64(len(fn.Upvalues))*8
}

// allocFunction registers fn in the arena and accounts for its size, running
// a collection first if the allocation would cross the threshold (or always,
// under stress mode).
func (vm *VM) allocFunction(fn *Function) *Function {
	size := functionSize(fn)
	if vm.gcStress || vm.bytesAllocated+size > vm.nextGC {
		vm.collectGarbage()
	}
	vm.arena = append(vm.arena, fn)
	vm.bytesAllocated += size
	return fn
}

// collectGarbage runs one mark-sweep cycle over the arena. Roots are the
// value stack, every live frame's closure, the open upvalues, the script
// entry point, and the globals table; marking is transitive through closure
// upvalues, so a closure kept alive only by another closure's captured state
// is still found.
func (vm *VM) collectGarbage() {
	marked := make(map[*Function]bool, len(vm.arena))
	var mark func(fn *Function)
	mark = func(fn *Function) {
		if fn == nil || marked[fn] {
			return
		}
		marked[fn] = true
		for _, uv := range fn.Upvalues {
			markValue(uv.get(), mark)
		}
	}

	for _, v := range vm.stack {
		markValue(v, mark)
	}
	for _, fr := range vm.frames {
		mark(fr.fn)
	}
	for _, uv := range vm.openUpvalues {
		markValue(uv.get(), mark)
	}
	for _, v := range vm.globals {
		markValue(v, mark)
	}
	mark(vm.script)

	kept := vm.arena[:0]
	var live int64
	for _, fn := range vm.arena {
		if marked[fn] {
			kept = append(kept, fn)
			live += functionSize(fn)
		}
	}
	vm.arena = kept
	vm.bytesAllocated = live
	vm.gcCycles++

	threshold := vm.nextGC
	for threshold < vm.bytesAllocated*2 {
		threshold *= 2
	}
	if threshold < initialGCThreshold {
		threshold = initialGCThreshold
	}
	vm.nextGC = threshold
}

// markValue marks the function reachable from v, if v holds one.
func markValue(v Value, mark func(*Function)) {
	if v.Kind == KindFunction {
		mark(v.Func)
	}
}
