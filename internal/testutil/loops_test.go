package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ssaopt/internal/ir"
)

func TestNewSumLoop_Defaults(t *testing.T) {
	l := NewSumLoop("sum", LoopSpec{})

	require.Same(t, l.Header, l.Latch)
	assert.Equal(t, ir.TypeInt32, l.Index.Type())
	assert.Equal(t, ir.CondLT, l.Compare.CC)
	assert.Equal(t, int64(10), l.Compare.Input(1).Int64())
	assert.Equal(t, []*ir.Block{l.Graph.Entry(), l.Header}, l.Header.Preds())
	assert.Equal(t, 2, l.Result.NumInputs())
	assert.Empty(t, l.Params)
}

func TestNewSumLoop_Variants(t *testing.T) {
	l := NewSumLoop("variants", LoopSpec{
		Dec:           true,
		Init:          20,
		TestParam:     true,
		SplitLatch:    true,
		OverflowCheck: true,
		NoGuard:       true,
	})

	assert.NotSame(t, l.Header, l.Latch)
	assert.Equal(t, ir.OpSubOverflowCheck, l.Update.Op())
	assert.Equal(t, ir.CondGT, l.Compare.CC)
	assert.Len(t, l.Params, 1)
	assert.Equal(t, 1, l.Result.NumInputs())
	assert.Equal(t, []*ir.Block{l.Latch}, l.Exit.Preds())
}
