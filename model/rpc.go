package model

import (
	"bytes"
	"strconv"
)

// Request wire format (ASCII):
//
//	<tag>:                         zero-arg request (Syn, GetSize)
//	<tag>:<arg>:<arg>              fixed-arity request (CreateGraph)
//	3:<v>,<e>:<v>,<e>...           combined AddInclusion request, pairs in ascending order
//
// Replies are signed little-endian integers with no length prefix.

// MaxReplyWidth is the widest integer reply (bytes) the codec decodes.
const MaxReplyWidth = 8

// Request is a decoded request (used by the service side and tests).
type Request struct {
	Op         OpCode
	Args       []int64
	Inclusions InclusionList
}

// EncodeRequest builds the wire request for a single descriptor.
// An AddInclusion descriptor is encoded as a one-pair combined request.
func EncodeRequest(d Descriptor) []byte {
	if d.op == OpAddInclusion && len(d.args) == 2 {
		return EncodeInclusionRequest(InclusionList{{Vertex: VertexId(d.args[0]), Edge: EdgeId(d.args[1])}})
	}

	buf := bytes.Buffer{}
	buf.WriteString(strconv.Itoa(int(d.op)))
	buf.WriteByte(Delimiter)
	for i, arg := range d.args {
		if i > 0 {
			buf.WriteByte(Delimiter)
		}
		buf.WriteString(strconv.FormatInt(arg, 10))
	}

	return buf.Bytes()
}

// EncodeInclusionRequest builds the combined AddInclusion request for a set of pairs.
// Pairs are emitted in canonical order, duplicates collapsed.
func EncodeInclusionRequest(pairs InclusionList) []byte {
	if !pairs.IsCanonical() {
		pairs = pairs.Canonical()
	}

	buf := bytes.Buffer{}
	buf.WriteString(strconv.Itoa(int(OpAddInclusion)))
	buf.WriteByte(Delimiter)
	for i, pair := range pairs {
		if i > 0 {
			buf.WriteByte(Delimiter)
		}
		buf.WriteString(strconv.FormatInt(int64(pair.Vertex), 10))
		buf.WriteByte(PairSeparator)
		buf.WriteString(strconv.FormatInt(int64(pair.Edge), 10))
	}

	return buf.Bytes()
}

// ParseRequest decodes a wire request produced by EncodeRequest / EncodeInclusionRequest.
func ParseRequest(raw []byte) (Request, error) {
	fields := bytes.Split(raw, []byte{Delimiter})
	if len(fields) < 2 {
		return Request{}, NewError(ErrProtocol, "request %q: missing delimiter", raw)
	}

	tag, err := strconv.ParseInt(string(fields[0]), 10, 32)
	if err != nil {
		return Request{}, MarkAs(err, ErrProtocol, "request %q: opcode", raw)
	}
	op := OpCode(tag)
	if !op.IsValid() {
		return Request{}, NewError(ErrProtocol, "request %q: unknown opcode %d", raw, tag)
	}

	req := Request{Op: op}
	argFields := fields[1:]

	switch {
	case op == OpAddInclusion:
		if len(argFields) == 1 && len(argFields[0]) == 0 {
			return Request{}, NewError(ErrProtocol, "request %q: no inclusion pairs", raw)
		}
		req.Inclusions = make(InclusionList, 0, len(argFields))
		for i, field := range argFields {
			pair, err := parsePair(field)
			if err != nil {
				return Request{}, MarkAs(err, ErrProtocol, "request %q: pair[%d]", raw, i)
			}
			req.Inclusions = append(req.Inclusions, pair)
		}
	case op.Arity() == 0:
		if len(argFields) != 1 || len(argFields[0]) != 0 {
			return Request{}, NewError(ErrProtocol, "request %q: %s takes no args", raw, op)
		}
	default:
		if len(argFields) != op.Arity() {
			return Request{}, NewError(ErrProtocol, "request %q: %s expects %d args, got %d", raw, op, op.Arity(), len(argFields))
		}
		req.Args = make([]int64, 0, len(argFields))
		for i, field := range argFields {
			arg, err := strconv.ParseInt(string(field), 10, 64)
			if err != nil {
				return Request{}, MarkAs(err, ErrProtocol, "request %q: arg[%d]", raw, i)
			}
			req.Args = append(req.Args, arg)
		}
	}

	return req, nil
}

// parsePair decodes one "<vertex>,<edge>" field.
func parsePair(field []byte) (Inclusion, error) {
	idx := bytes.IndexByte(field, PairSeparator)
	if idx < 0 {
		return Inclusion{}, NewError(ErrProtocol, "%q: missing pair separator", field)
	}

	vertex, err := strconv.ParseInt(string(field[:idx]), 10, 64)
	if err != nil {
		return Inclusion{}, err
	}
	edge, err := strconv.ParseInt(string(field[idx+1:]), 10, 64)
	if err != nil {
		return Inclusion{}, err
	}

	return Inclusion{Vertex: VertexId(vertex), Edge: EdgeId(edge)}, nil
}

// IsValidReplyWidth checks the reply width setting: 0 (auto) or a pinned 1, 2, 4, 8 bytes.
func IsValidReplyWidth(width int) bool {
	switch width {
	case 0, 1, 2, 4, 8:
		return true
	}

	return false
}

// EncodeReply builds a little-endian signed integer reply; width 0 encodes 8 bytes.
func EncodeReply(v int64, width int) ([]byte, error) {
	if !IsValidReplyWidth(width) {
		return nil, NewError(ErrInvalidArgument, "reply width %d: unsupported", width)
	}
	if width == 0 {
		width = MaxReplyWidth
	}
	if width < MaxReplyWidth {
		limit := int64(1) << (8*width - 1)
		if v < -limit || v >= limit {
			return nil, NewError(ErrInvalidArgument, "reply value %d: overflows %d bytes", v, width)
		}
	}

	out := make([]byte, width)
	u := uint64(v)
	for i := 0; i < width; i++ {
		out[i] = byte(u >> (8 * i))
	}

	return out, nil
}

// DecodeReply decodes a little-endian signed integer reply.
// Width 0 accepts any 1..MaxReplyWidth byte reply, a pinned width requires an exact length.
func DecodeReply(raw []byte, width int) (int64, error) {
	if !IsValidReplyWidth(width) {
		return 0, NewError(ErrInvalidArgument, "reply width %d: unsupported", width)
	}
	if len(raw) == 0 {
		return 0, NewError(ErrProtocol, "reply: truncated (0 bytes)")
	}
	if len(raw) > MaxReplyWidth {
		return 0, NewError(ErrProtocol, "reply: %d bytes exceeds %d", len(raw), MaxReplyWidth)
	}
	if width != 0 && len(raw) != width {
		return 0, NewError(ErrProtocol, "reply: got %d bytes, want %d", len(raw), width)
	}

	var u uint64
	for i := len(raw) - 1; i >= 0; i-- {
		u = u<<8 | uint64(raw[i])
	}
	shift := uint(64 - 8*len(raw))

	return int64(u<<shift) >> shift, nil
}
