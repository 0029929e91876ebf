package storage

import (
	"github.com/pnnl/chgl/model"
)

type (
	// OperationBuffer keeps pending operations in call order until they are flushed.
	// Only AddInclusion descriptors are buffered; Append and Reset are its only mutators.
	OperationBuffer struct {
		ops []model.Descriptor
	}
)

// Append buffers an AddInclusion descriptor (no deduplication).
func (b *OperationBuffer) Append(d model.Descriptor) error {
	if d.Op() != model.OpAddInclusion {
		return model.NewError(model.ErrInvalidArgument, "buffer: %s is not bufferable", d.Op())
	}
	b.ops = append(b.ops, d)

	return nil
}

// Len returns the number of buffered descriptors.
func (b *OperationBuffer) Len() int {
	return len(b.ops)
}

// Descriptors returns a copy of the buffered descriptors in call order.
func (b *OperationBuffer) Descriptors() []model.Descriptor {
	out := make([]model.Descriptor, len(b.ops))
	copy(out, b.ops)

	return out
}

// Coalesce builds the set of distinct inclusion pairs buffered so far.
// The second return value is the number of duplicates collapsed.
func (b *OperationBuffer) Coalesce() (*InclusionSet, int) {
	set := NewInclusionSet()
	duplicates := 0
	for _, d := range b.ops {
		pair, ok := d.Inclusion()
		if !ok {
			continue
		}
		if !set.Add(pair) {
			duplicates++
		}
	}

	return set, duplicates
}

// Reset empties the buffer.
func (b *OperationBuffer) Reset() {
	b.ops = nil
}

// NewOperationBuffer creates a new empty OperationBuffer object.
func NewOperationBuffer() *OperationBuffer {
	return &OperationBuffer{}
}
