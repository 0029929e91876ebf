package model

import "strconv"

type (
	VertexId int64

	EdgeId int64
)

// OpCode is the integer tag identifying a remote graph operation on the wire.
type OpCode int32

const (
	OpSyn          OpCode = 0x0 // sent to the service to initiate a session
	OpAck          OpCode = 0x1 // received from the service to acknowledge a request
	OpCreateGraph  OpCode = 0x2 // new hypergraph(numVertices, numEdges)
	OpAddInclusion OpCode = 0x3 // graph.addInclusion(vertex, edge)
	OpGetSize      OpCode = 0x4 // graph.size
)

// Delimiter separates the opcode tag and the arguments of a request.
const Delimiter = ':'

// PairSeparator separates the vertex and the edge of one inclusion pair inside a combined request.
const PairSeparator = ','

var opCodeNames = map[OpCode]string{
	OpSyn:          "Syn",
	OpAck:          "Ack",
	OpCreateGraph:  "CreateGraph",
	OpAddInclusion: "AddInclusion",
	OpGetSize:      "GetSize",
}

var opCodeArity = map[OpCode]int{
	OpSyn:          0,
	OpAck:          0,
	OpCreateGraph:  2,
	OpAddInclusion: 2,
	OpGetSize:      0,
}

// String implements the stringer interface.
func (o OpCode) String() string {
	if name, ok := opCodeNames[o]; ok {
		return name
	}

	return "OpCode(" + strconv.Itoa(int(o)) + ")"
}

// IsValid checks if the opcode belongs to the protocol.
func (o OpCode) IsValid() bool {
	_, ok := opCodeArity[o]
	return ok
}

// Arity returns the fixed number of arguments for the opcode (-1 for unknown opcodes).
func (o OpCode) Arity() int {
	if n, ok := opCodeArity[o]; ok {
		return n
	}

	return -1
}
