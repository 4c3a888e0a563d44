package unroll

// Defaults used by DefaultConfig.
const (
	DefaultInstLimit = 100
	DefaultFactor    = 6
)

// Config is the unroller's tuning. It is passed to Run explicitly; there is
// no process-wide state.
type Config struct {
	// InstLimit bounds the size of an unrolled loop:
	// cloneable*factor + notCloneable <= InstLimit.
	InstLimit uint32 `json:"inst_limit"`

	// Factor is the requested number of body copies per iteration. The
	// instruction limit may lower it for a given loop.
	Factor uint32 `json:"factor"`

	// UnrollWithCalls allows unrolling loops that contain calls which
	// were not inlined.
	UnrollWithCalls bool `json:"unroll_with_calls"`

	// UnrollWithSideExits allows the fallback in which every copy keeps
	// its own exit test.
	UnrollWithSideExits bool `json:"unroll_with_side_exits"`
}

// DefaultConfig returns the configuration used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		InstLimit:           DefaultInstLimit,
		Factor:              DefaultFactor,
		UnrollWithCalls:     false,
		UnrollWithSideExits: true,
	}
}
