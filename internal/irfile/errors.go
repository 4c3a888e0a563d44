package irfile

import (
	"errors"
	"fmt"
)

// Graph file error codes (F200-F299)
const (
	ErrCodeRead      = "F201" // file cannot be read
	ErrCodeSyntax    = "F202" // malformed YAML or unknown field
	ErrCodeMissing   = "F203" // required field is empty
	ErrCodeDuplicate = "F204" // block or value name defined twice
	ErrCodeUndefined = "F205" // reference to an undefined block or value
	ErrCodeBadValue  = "F206" // unknown opcode, type or condition, or bad constant
	ErrCodeShape     = "F207" // successor, phi or register count does not fit
	ErrCodeWrite     = "F208" // file cannot be written
)

// LoadError reports a problem with a graph file. Where names the block or
// value the problem was found at, if any.
type LoadError struct {
	Code    string
	Message string
	Path    string
	Where   string
}

func (e *LoadError) Error() string {
	var prefix string
	switch {
	case e.Path != "" && e.Where != "":
		prefix = fmt.Sprintf("%s: %s: ", e.Path, e.Where)
	case e.Path != "":
		prefix = e.Path + ": "
	case e.Where != "":
		prefix = e.Where + ": "
	}
	return fmt.Sprintf("%s%s: %s", prefix, e.Code, e.Message)
}

// IsLoadError reports whether err is or wraps a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Code returns the code of the LoadError in err's chain, or "".
func Code(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
