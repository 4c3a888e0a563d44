// Package config loads the pass configuration.
//
// Configuration files are CUE. A file is unified with the embedded schema
// (schema.cue), which supplies defaults and rejects unknown fields and
// out-of-range values:
//
//	passes: ["fold", "unroll"]
//	unroll: {
//		factor:     4
//		inst_limit: 200
//	}
//
// Environment overrides are applied by the command line only, through
// ApplyEnv. Passes always receive their configuration as a value.
//
// Config error codes live in K300-K399 (see errors.go).
package config
