package config

import (
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// CUELoader compiles CUE descriptors and exports them as JSON.
type CUELoader struct {
	mu  sync.Mutex
	ctx *cue.Context
}

// NewCUELoader creates a new CUE loader.
func NewCUELoader() *CUELoader {
	return &CUELoader{ctx: cuecontext.New()}
}

// Compile compiles CUE source. filename is used in error positions.
func (cl *CUELoader) Compile(filename string, content []byte) (cue.Value, []ValidationError) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	val := cl.ctx.CompileBytes(content, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return cue.Value{}, convertCUEErrors(err)
	}
	return val, nil
}

// ExportJSON compiles CUE source and renders the concrete value as JSON.
// Field order follows declaration order.
func (cl *CUELoader) ExportJSON(filename string, content []byte) ([]byte, []ValidationError) {
	val, errs := cl.Compile(filename, content)
	if len(errs) > 0 {
		return nil, errs
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEErrors(err)
	}

	data, err := val.MarshalJSON()
	if err != nil {
		return nil, convertCUEErrors(err)
	}
	return data, nil
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     strings.Join(e.Path(), "."),
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

// summarize joins validation errors into a single line.
func summarize(errs []ValidationError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := strings.TrimSpace(e.Message)
		if e.Line > 0 {
			msg = fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, msg)
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}
