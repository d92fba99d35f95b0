package refs

import (
	"reflect"
)

// Stack is the set of objects being written, used to detect the cycles when
// the references are not preserved.
type Stack struct {
	depth map[Key]int
}

// NewStack returns a new empty stack.
func NewStack() *Stack {
	return &Stack{
		depth: make(map[Key]int),
	}
}

// Enter pushes the object and returns false if it is already on the stack.
// Values without identity are always accepted.
func (s *Stack) Enter(v reflect.Value) bool {
	key, ok := KeyOf(v)
	if !ok {
		return true
	}

	if s.depth[key] > 0 {
		return false
	}

	s.depth[key]++

	return true
}

// Leave pops the object.
func (s *Stack) Leave(v reflect.Value) {
	key, ok := KeyOf(v)
	if !ok {
		return
	}

	s.depth[key]--
	if s.depth[key] <= 0 {
		delete(s.depth, key)
	}
}

// Len returns the number of objects on the stack.
func (s *Stack) Len() int {
	return len(s.depth)
}
