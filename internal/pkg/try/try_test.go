package try

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errNotFound = errors.New("not found")
	errTimeout  = errors.New("timeout")
	errMissing  = errors.New("server missing")
	errBusy     = errors.New("busy")
)

type terminalErr struct{}

func (terminalErr) Error() string { return "terminal" }
func (terminalErr) Classified() bool { return true }

type codeErr struct{ code int }

func (e *codeErr) Error() string { return "code " + strconv.Itoa(e.code) }

// TestOf_Value verifies that a successful computation is carried through Map and FlatMap.
func TestOf_Value(t *testing.T) {
	t.Parallel()

	got := Map(Of(func() (int, error) { return 21, nil }), func(v int) int { return v * 2 })
	v, err := FlatMap(got, func(v int) Try[string] { return Success(strconv.Itoa(v)) }).Unwrap()

	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

// TestOf_Panic verifies that a panicking computation becomes a failure instead of crashing.
func TestOf_Panic(t *testing.T) {
	t.Parallel()

	res := Of(func() (int, error) { panic("kaboom") })

	assert.False(t, res.IsSuccess())
	assert.ErrorIs(t, res.Err(), ErrPanic)
	assert.Contains(t, res.Err().Error(), "kaboom")

	mapped := Map(Success(1), func(int) int { panic("in map") })
	assert.ErrorIs(t, mapped.Err(), ErrPanic)
}

// TestMap_ShortCircuits verifies that transformations are skipped on failure.
func TestMap_ShortCircuits(t *testing.T) {
	t.Parallel()

	called := false
	res := Map(Fail[int](errTimeout), func(v int) int {
		called = true
		return v
	})

	assert.False(t, called)
	assert.ErrorIs(t, res.Err(), errTimeout)
}

// TestCatching verifies the chained form of failure reclassification.
func TestCatching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "first matcher", in: errNotFound, want: errMissing},
		{name: "second matcher", in: errTimeout, want: errBusy},
		{name: "no matcher", in: errors.New("other"), want: nil},
		{name: "wrapped cause", in: fmt.Errorf("get: %w", errNotFound), want: errMissing},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := Fail[int](tc.in).
				Catching(Is(errNotFound), Const(errMissing)).
				Catching(Is(errTimeout), Const(errBusy))

			if tc.want == nil {
				assert.Equal(t, tc.in, res.Err())
				return
			}
			assert.ErrorIs(t, res.Err(), tc.want)
		})
	}
}

// TestCatching_NilHandlerKeepsFailure verifies that a handler returning nil does not turn a failure into success.
func TestCatching_NilHandlerKeepsFailure(t *testing.T) {
	t.Parallel()

	res := Fail[int](errNotFound).Catching(Any(), func(error) error { return nil })

	assert.ErrorIs(t, res.Err(), errNotFound)
}

// TestCatch_FirstMatchWins verifies that rules are evaluated once, in order.
func TestCatch_FirstMatchWins(t *testing.T) {
	t.Parallel()

	calls := 0
	count := func(to error) func(error) error {
		return func(error) error {
			calls++
			return to
		}
	}

	res := Fail[int](&codeErr{code: 404}).Catch(
		When(Is(errTimeout), count(errBusy)),
		When(As[*codeErr](), count(errMissing)),
		When(Any(), count(errBusy)),
	)

	assert.ErrorIs(t, res.Err(), errMissing)
	assert.Equal(t, 1, calls)
}

// TestCatch_ClassifiedPassesThrough verifies that an already classified failure is never remapped.
func TestCatch_ClassifiedPassesThrough(t *testing.T) {
	t.Parallel()

	orig := fmt.Errorf("step: %w", terminalErr{})

	res := Fail[int](orig).
		Catch(When(Any(), Const(errBusy))).
		Catching(Any(), Const(errBusy))

	assert.Equal(t, orig, res.Err())
}

// TestOnEach verifies that OnEach observes only successful values.
func TestOnEach(t *testing.T) {
	t.Parallel()

	var seen []int
	Success(7).OnEach(func(v int) { seen = append(seen, v) })
	Fail[int](errTimeout).OnEach(func(v int) { seen = append(seen, v) })

	assert.Equal(t, []int{7}, seen)
}

// TestFail_Nil verifies that Fail never produces a success.
func TestFail_Nil(t *testing.T) {
	t.Parallel()

	assert.False(t, Fail[int](nil).IsSuccess())
	assert.True(t, From(3, nil).IsSuccess())
}
