package compiler

// local is one declared name in a function's lexical scope chain.
type local struct {
	name     string
	depth    int
	captured bool
}

// scope tracks locals and upvalues for one function being compiled.
type scope struct {
	enclosing *scope
	locals    []local
	upvalues  []Upvalue
	depth     int
	maxSlots  int // high-water mark of len(locals), for Prototype.MaxLocals
}

func newScope(enclosing *scope) *scope {
	return &scope{enclosing: enclosing}
}

// enterBlock increments the lexical depth.
func (s *scope) enterBlock() {
	s.depth++
}

// leaveBlock decrements the lexical depth and returns the locals that fall
// out of scope, in declaration order, so the caller can emit one OP_POP or
// OP_CLOSE_UPVALUE per departing slot (captured ones get CLOSE_UPVALUE).
func (s *scope) leaveBlock() []local {
	s.depth--
	cut := len(s.locals)
	for cut > 0 && s.locals[cut-1].depth > s.depth {
		cut--
	}
	popped := append([]local(nil), s.locals[cut:]...)
	s.locals = s.locals[:cut]
	return popped
}

// addLocal reserves the next slot for name at the current depth. ok is
// false if name is already declared at this exact depth (duplicate local).
func (s *scope) addLocal(name string) (slot uint8, ok bool) {
	for i := len(s.locals) - 1; i >= 0; i-- {
		if s.locals[i].depth < s.depth {
			break
		}
		if s.locals[i].name == name {
			return 0, false
		}
	}
	s.locals = append(s.locals, local{name: name, depth: s.depth})
	if len(s.locals) > s.maxSlots {
		s.maxSlots = len(s.locals)
	}
	return uint8(len(s.locals) - 1), true
}

// resolveLocal returns the slot of name in this scope's locals, searching
// from the most recently declared (innermost) backward.
func (s *scope) resolveLocal(name string) (uint8, bool) {
	for i := len(s.locals) - 1; i >= 0; i-- {
		if s.locals[i].name == name {
			return uint8(i), true
		}
	}
	return 0, false
}

// resolveUpvalue walks enclosing scopes to find name, capturing it as an
// upvalue chain if found, deduplicating repeated captures of the same slot.
func (s *scope) resolveUpvalue(name string) (uint8, bool) {
	if s.enclosing == nil {
		return 0, false
	}
	if slot, ok := s.enclosing.resolveLocal(name); ok {
		s.enclosing.locals[slot].captured = true
		return s.addUpvalue(Upvalue{IsLocal: true, Index: slot}), true
	}
	if idx, ok := s.enclosing.resolveUpvalue(name); ok {
		return s.addUpvalue(Upvalue{IsLocal: false, Index: idx}), true
	}
	return 0, false
}

func (s *scope) addUpvalue(up Upvalue) uint8 {
	for i, existing := range s.upvalues {
		if existing == up {
			return uint8(i)
		}
	}
	s.upvalues = append(s.upvalues, up)
	return uint8(len(s.upvalues) - 1)
}
