package model

import (
	"fmt"
	"strings"
)

// Descriptor is a single remote operation: an opcode with its ordered arguments.
// Descriptor is immutable once constructed; use Equal for value comparison.
type Descriptor struct {
	op   OpCode
	args []int64
}

// NewDescriptor creates a valid Descriptor object.
func NewDescriptor(op OpCode, args ...int64) (Descriptor, error) {
	if !op.IsValid() {
		return Descriptor{}, NewError(ErrInvalidArgument, "opcode %d: unknown", int32(op))
	}
	if len(args) != op.Arity() {
		return Descriptor{}, NewError(ErrInvalidArgument, "%s: expects %d args, got %d", op, op.Arity(), len(args))
	}

	argsCopy := make([]int64, len(args))
	copy(argsCopy, args)

	return Descriptor{
		op:   op,
		args: argsCopy,
	}, nil
}

// MustDescriptor is NewDescriptor that panics on invalid input (used for static requests).
func MustDescriptor(op OpCode, args ...int64) Descriptor {
	d, err := NewDescriptor(op, args...)
	if err != nil {
		panic(err)
	}

	return d
}

// NewInclusionDescriptor creates the AddInclusion descriptor for the vertex / edge pair.
func NewInclusionDescriptor(vertex VertexId, edge EdgeId) Descriptor {
	return MustDescriptor(OpAddInclusion, int64(vertex), int64(edge))
}

// Op returns the descriptor opcode.
func (d Descriptor) Op() OpCode {
	return d.op
}

// Args returns a copy of the descriptor arguments.
func (d Descriptor) Args() []int64 {
	out := make([]int64, len(d.args))
	copy(out, d.args)

	return out
}

// Inclusion returns the pair carried by an AddInclusion descriptor.
func (d Descriptor) Inclusion() (Inclusion, bool) {
	if d.op != OpAddInclusion || len(d.args) != 2 {
		return Inclusion{}, false
	}

	return Inclusion{Vertex: VertexId(d.args[0]), Edge: EdgeId(d.args[1])}, true
}

// Equal compares descriptors by opcode and arguments.
func (d Descriptor) Equal(other Descriptor) bool {
	if d.op != other.op || len(d.args) != len(other.args) {
		return false
	}
	for i := range d.args {
		if d.args[i] != other.args[i] {
			return false
		}
	}

	return true
}

// String implements the stringer interface.
func (d Descriptor) String() string {
	str := strings.Builder{}
	str.WriteString("{" + d.op.String())
	for _, arg := range d.args {
		str.WriteString(fmt.Sprintf(", %d", arg))
	}
	str.WriteString("}")

	return str.String()
}
