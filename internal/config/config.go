package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/xyproto/env/v2"

	"github.com/roach88/ssaopt/internal/unroll"
)

// Pass names accepted in PassConfig.Passes.
const (
	PassFold   = "fold"
	PassUnroll = "unroll"
)

// Environment variables read by ApplyEnv.
const (
	EnvFactor    = "SSAOPT_UNROLL_FACTOR"
	EnvInstLimit = "SSAOPT_INST_LIMIT"
	EnvWithCalls = "SSAOPT_UNROLL_WITH_CALLS"
	EnvSideExits = "SSAOPT_UNROLL_SIDE_EXITS"
)

//go:embed schema.cue
var schemaSource string

// PassConfig selects the passes to run, in order, and tunes them.
type PassConfig struct {
	Passes []string      `json:"passes"`
	Unroll unroll.Config `json:"unroll"`
}

// Default returns the configuration used without a file: constant folding
// followed by unrolling, with unroll.DefaultConfig.
func Default() PassConfig {
	return PassConfig{
		Passes: []string{PassFold, PassUnroll},
		Unroll: unroll.DefaultConfig(),
	}
}

// Load reads the CUE configuration file at path.
func Load(path string) (PassConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PassConfig{}, &ConfigError{Code: ErrCodeRead, Message: err.Error()}
	}
	return Parse(path, data)
}

// Parse unifies CUE source with the schema and decodes the result.
// Fields the source leaves out take the schema defaults.
func Parse(filename string, src []byte) (PassConfig, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}

	file := ctx.CompileBytes(src, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return PassConfig{}, fromCUE(ErrCodeCompile, err)
	}

	v := schema.LookupPath(cue.ParsePath("#PassConfig")).Unify(file)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return PassConfig{}, fromCUE(ErrCodeSchema, err)
	}

	var cfg PassConfig
	if err := v.Decode(&cfg); err != nil {
		return PassConfig{}, fromCUE(ErrCodeSchema, err)
	}
	if err := cfg.Validate(); err != nil {
		return PassConfig{}, err
	}
	return cfg, nil
}

// Validate checks what the schema cannot express and is also run on
// configurations assembled from flags.
func (c PassConfig) Validate() error {
	if len(c.Passes) == 0 {
		return &ConfigError{Code: ErrCodePassList, Message: "no passes selected"}
	}
	for n, p := range c.Passes {
		if p != PassFold && p != PassUnroll {
			return &ConfigError{Code: ErrCodePassList, Message: fmt.Sprintf("unknown pass %q", p)}
		}
		if slices.Contains(c.Passes[:n], p) {
			return &ConfigError{Code: ErrCodePassList, Message: fmt.Sprintf("pass %q listed twice", p)}
		}
	}
	if c.Unroll.Factor == 0 {
		return &ConfigError{Code: ErrCodeSchema, Message: "unroll factor must be at least 1"}
	}
	if c.Unroll.InstLimit == 0 {
		return &ConfigError{Code: ErrCodeSchema, Message: "instruction limit must be at least 1"}
	}
	return nil
}

// ParsePasses splits a comma-separated pass list such as "fold,unroll".
func ParsePasses(s string) []string {
	var passes []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			passes = append(passes, p)
		}
	}
	return passes
}

// ApplyEnv returns c with the SSAOPT_* environment overrides applied.
// Numeric overrides must be positive integers. The environment is re-read
// on every call, since env caches it at start-up.
func (c PassConfig) ApplyEnv() (PassConfig, error) {
	env.Load()
	c.Passes = slices.Clone(c.Passes)
	for _, o := range []struct {
		name string
		dst  *uint32
	}{
		{EnvFactor, &c.Unroll.Factor},
		{EnvInstLimit, &c.Unroll.InstLimit},
	} {
		if !env.Has(o.name) {
			continue
		}
		v := env.Int(o.name, -1)
		if v < 1 || int64(v) > int64(^uint32(0)) {
			return c, &ConfigError{Code: ErrCodeEnv, Message: fmt.Sprintf("%s must be a positive integer, got %q", o.name, env.Str(o.name))}
		}
		*o.dst = uint32(v)
	}
	if env.Has(EnvWithCalls) {
		c.Unroll.UnrollWithCalls = env.Bool(EnvWithCalls)
	}
	if env.Has(EnvSideExits) {
		c.Unroll.UnrollWithSideExits = env.Bool(EnvSideExits)
	}
	return c, nil
}

// JSON renders c for the run log.
func (c PassConfig) JSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("config: marshal: %v", err))
	}
	return string(data)
}

// Has reports whether pass p is selected.
func (c PassConfig) Has(p string) bool {
	return slices.Contains(c.Passes, p)
}
