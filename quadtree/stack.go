package quadtree

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// StackCapacity is the number of pending nodes a traversal can record.
	StackCapacity = 32

	// MaxDepthLimit is the deepest subdivision a tree accepts. A traversal
	// holds at most one pending node per level, so this keeps every
	// traversal within StackCapacity.
	MaxDepthLimit = StackCapacity - 2
)

var stackPool = sync.Pool{
	New: func() any {
		return new(stack)
	},
}

func acquireStack() *stack {
	return stackPool.Get().(*stack)
}

func releaseStack(s *stack) {
	s.reset()
	stackPool.Put(s)
}

// stack is the explicit continuation record of a traversal.
type stack struct {
	// Top of stack index.
	tos   int
	nodes [StackCapacity]int32
}

func (s *stack) push(idx int32) error {
	if s.tos == len(s.nodes) {
		return errors.New("traversal stack overflow").
			WithType(ErrTypeStackOverflow).
			WithTag("capacity", StackCapacity)
	}
	s.nodes[s.tos] = idx
	s.tos++
	return nil
}

func (s *stack) pop() int32 {
	s.tos--
	idx := s.nodes[s.tos]
	s.nodes[s.tos] = noNode
	return idx
}

func (s *stack) empty() bool {
	return s.tos <= 0
}

func (s *stack) len() int {
	return s.tos
}

func (s *stack) reset() {
	s.tos = 0
	s.nodes = [StackCapacity]int32{}
}
