package types

import "strings"

/*
SourceDocument is the normalized text extracted from a caller-supplied
file. It lives only for the duration of one assembly and is discarded
once the context is built.
*/
type SourceDocument struct {
	Path      string
	ByteLen   int
	Text      string
	Truncated bool
}

// SegmentKind identifies where a context segment came from.
type SegmentKind string

const (
	SegmentMemory SegmentKind = "memory"
	SegmentSource SegmentKind = "source"
	SegmentQuery  SegmentKind = "query"
)

// Segment is one ordered slice of the assembled context.
type Segment struct {
	Kind SegmentKind
	Text string
}

/*
AssembledContext is the bounded payload handed to the backend: memory
excerpts first, then the source document, then the query. The invariant
sum(len(segment.Text)) <= Budget holds for every value produced by the
assembler; nothing violating it is ever dispatched.
*/
type AssembledContext struct {
	Segments []Segment
	Budget   int
	// Truncated is set when any segment other than the query was
	// shortened or dropped to fit the budget.
	Truncated bool
}

// Size returns the combined length of all segment text.
func (actx *AssembledContext) Size() int {
	total := 0
	for _, seg := range actx.Segments {
		total += len(seg.Text)
	}
	return total
}

// Prompt renders the segments into the single backend prompt.
func (actx *AssembledContext) Prompt() string {
	parts := make([]string, 0, len(actx.Segments))
	for _, seg := range actx.Segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, "\n\n")
}

// QueryText returns the text of the query segment, if present.
func (actx *AssembledContext) QueryText() string {
	for _, seg := range actx.Segments {
		if seg.Kind == SegmentQuery {
			return seg.Text
		}
	}
	return ""
}
