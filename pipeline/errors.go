package pipeline

import "fmt"

// SyntaxError reports unparsable pipeline text, with the source position
// when the parser could recover one.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("syntax error at line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("syntax error: %s", e.Msg)
}

// StageError reports a problem with one declared stage: a missing or
// invalid field, an ambiguous stage kind, or a shader compiler diagnostic.
// Index is the zero-based position in the stage list.
type StageError struct {
	Index int
	Field string
	Msg   string
}

func (e *StageError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("stage %d: field %q: %s", e.Index, e.Field, e.Msg)
	}
	return fmt.Sprintf("stage %d: %s", e.Index, e.Msg)
}

// ShaderError carries the GLSL compiler or linker log for one stage's
// shader, with the file it came from.
type ShaderError struct {
	Index int
	Path  string
	Log   string
}

func (e *ShaderError) Error() string {
	return fmt.Sprintf("stage %d: shader %s: %s", e.Index, e.Path, e.Log)
}

// ResourceError reports a failed render target or texture allocation.
type ResourceError struct {
	Name string
	Err  error
}

func (e *ResourceError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("resource: %v", e.Err)
	}
	return fmt.Sprintf("resource %q: %v", e.Name, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

func stageErrf(index int, field, format string, args ...any) *StageError {
	return &StageError{Index: index, Field: field, Msg: fmt.Sprintf(format, args...)}
}
