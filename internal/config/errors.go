package config

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Config error codes (K300-K399)
const (
	ErrCodeRead     = "K301" // file cannot be read
	ErrCodeCompile  = "K302" // CUE syntax error
	ErrCodeSchema   = "K303" // value violates the schema
	ErrCodeEnv      = "K304" // malformed environment override
	ErrCodePassList = "K305" // empty or repeated pass list
)

// ConfigError reports an invalid configuration. Pos is set when the
// problem was found in a CUE file.
type ConfigError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// fromCUE converts the first error of a CUE error list, keeping its
// position.
func fromCUE(code string, err error) *ConfigError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	ce := &ConfigError{Code: code, Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		ce.Pos = pos[0]
	}
	return ce
}
