package ledger

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnrecognizedLayout is matched by every LayoutError.
var ErrUnrecognizedLayout = errors.New("unrecognized statement layout")

// LayoutError reports a statement whose header lacks a required column. It
// means the file is in a format the parser does not support.
type LayoutError struct {
	File      string
	Source    Source
	Column    string
	HeaderRow int // 1-based row where the header was expected
}

func (e *LayoutError) Error() string {
	kind := "bank statement"
	if e.Source == Credit {
		kind = "credit card statement"
	}
	file := e.File
	if file == "" {
		file = "input"
	}
	return fmt.Sprintf("unrecognized %s layout in %s: missing column %q (header row %d)",
		kind, file, e.Column, e.HeaderRow)
}

func (e *LayoutError) Is(target error) bool { return target == ErrUnrecognizedLayout }
