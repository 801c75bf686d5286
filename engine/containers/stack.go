package containers

// Stack is a LIFO list. The zero value is ready to use.
type Stack[T any] struct {
	data []T
}

// Create a new Stack with room for capacity elements
func NewStack[T any](capacity int) *Stack[T] {
	return &Stack[T]{
		data: make([]T, 0, capacity),
	}
}

// Push adds an element on top of the stack
func (s *Stack[T]) Push(value T) {
	s.data = append(s.data, value)
}

// Pop removes and returns the top element
func (s *Stack[T]) Pop() (T, bool) {
	var zero T
	if s.IsEmpty() {
		return zero, false
	}
	last := len(s.data) - 1
	value := s.data[last]
	s.data[last] = zero
	s.data = s.data[:last]
	return value, true
}

// Peek returns the top element without removing it
func (s *Stack[T]) Peek() (T, bool) {
	var zero T
	if s.IsEmpty() {
		return zero, false
	}
	return s.data[len(s.data)-1], true
}

// Drain calls fn for every element from top to bottom and empties the stack.
func (s *Stack[T]) Drain(fn func(T)) {
	for i := len(s.data) - 1; i >= 0; i-- {
		fn(s.data[i])
	}
	s.Clear()
}

// Each calls fn for every element from bottom to top without modifying the stack.
func (s *Stack[T]) Each(fn func(T)) {
	for _, v := range s.data {
		fn(v)
	}
}

// Items returns a copy of the elements, bottom first
func (s *Stack[T]) Items() []T {
	out := make([]T, len(s.data))
	copy(out, s.data)
	return out
}

func (s *Stack[T]) Clear() {
	clear(s.data)
	s.data = s.data[:0]
}

func (s *Stack[T]) Len() int {
	return len(s.data)
}

// IsEmpty checks if the stack is empty
func (s *Stack[T]) IsEmpty() bool {
	return len(s.data) == 0
}
