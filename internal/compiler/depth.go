package compiler

// MaxExpressionDepth bounds recursive descent through Expression and
// Condition trees, so a maliciously or accidentally deep query document
// fails cleanly instead of blowing the Go stack (SPEC_FULL.md, supplemented
// feature: depth guard).
const MaxExpressionDepth = 256

// enterDepth increments the shared recursion counter and returns
// ErrDepthExceeded once the new depth is past the limit. Every recursive
// compile entry point calls this on the way in and must defer ps.leaveDepth()
// on the way out.
func (ps *ParserState) enterDepth() error {
	ps.depth++
	if ps.depth > MaxExpressionDepth {
		return newErr(ErrDepthExceeded, "expression nesting exceeds %d levels", MaxExpressionDepth)
	}
	return nil
}

func (ps *ParserState) leaveDepth() {
	ps.depth--
}
