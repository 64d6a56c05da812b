package callstack_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pg-sharding/pgprof/pkg/callstack"
)

func openSomething() callstack.Stack {
	return helperLayer()
}

func helperLayer() callstack.Stack {
	return callstack.Capture(callstack.PrefixExcluder(
		"runtime.",
		"github.com/pg-sharding/pgprof/pkg/callstack.",
		"github.com/pg-sharding/pgprof/pkg/callstack_test.helperLayer",
	))
}

func TestCaptureSkipsExcludedFrames(t *testing.T) {
	assert := assert.New(t)

	stack := openSomething()
	require.NotEmpty(t, stack)

	assert.True(strings.HasSuffix(stack.Top().Function, "callstack_test.openSomething"), stack.Top().Function)
	assert.True(strings.HasSuffix(stack.Top().File, "callstack_test.go"))
	assert.Greater(stack.Top().Line, 0)

	var sawTest bool
	for _, f := range stack[1:] {
		if strings.HasSuffix(f.Function, "TestCaptureSkipsExcludedFrames") {
			sawTest = true
		}
	}
	assert.True(sawTest)
}

func TestCaptureWithoutExcluder(t *testing.T) {
	stack := callstack.Capture(nil)
	assert.True(t, strings.HasSuffix(stack.Top().Function, "callstack.Capture"), stack.Top().Function)
}

func TestEmptyStack(t *testing.T) {
	assert := assert.New(t)

	var s callstack.Stack
	assert.Equal(callstack.Frame{}, s.Top())
	assert.Equal("", s.String())
}
