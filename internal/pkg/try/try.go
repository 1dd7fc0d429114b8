// Package try carries either a value or a failure through a chain of transformations
// and lets callers reclassify failures close to where they happen.
package try

import (
	"errors"
	"fmt"
)

// ErrPanic wraps a value recovered from a panicking computation.
var ErrPanic = errors.New("panic")

// Try holds either a value or an error.
type Try[A any] struct {
	val A
	err error
}

// Of runs fn and captures its result. A panic inside fn becomes a failure.
func Of[A any](fn func() (A, error)) (t Try[A]) {
	defer func() {
		if r := recover(); r != nil {
			t = Fail[A](fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	return From(fn())
}

// Success returns a successful Try.
func Success[A any](v A) Try[A] {
	return Try[A]{val: v}
}

// Fail returns a failed Try. A nil err is treated as an unknown failure.
func Fail[A any](err error) Try[A] {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Try[A]{err: err}
}

// From builds a Try from the usual (value, error) pair.
func From[A any](v A, err error) Try[A] {
	if err != nil {
		return Fail[A](err)
	}
	return Success(v)
}

// Map transforms the value of a successful Try.
func Map[A, B any](t Try[A], f func(A) B) Try[B] {
	if t.err != nil {
		return Fail[B](t.err)
	}
	return Of(func() (B, error) { return f(t.val), nil })
}

// FlatMap chains a computation that can itself fail.
func FlatMap[A, B any](t Try[A], f func(A) Try[B]) Try[B] {
	if t.err != nil {
		return Fail[B](t.err)
	}

	var out Try[B]
	inner := Of(func() (struct{}, error) {
		out = f(t.val)
		return struct{}{}, nil
	})
	if inner.err != nil {
		return Fail[B](inner.err)
	}

	return out
}

// IsSuccess reports whether t holds a value.
func (t Try[A]) IsSuccess() bool { return t.err == nil }

// Err returns the failure, or nil.
func (t Try[A]) Err() error { return t.err }

// Unwrap rejoins ordinary control flow.
func (t Try[A]) Unwrap() (A, error) { return t.val, t.err }

// OnEach runs f on the value of a successful Try and returns t unchanged.
func (t Try[A]) OnEach(f func(A)) Try[A] {
	if t.err == nil {
		f(t.val)
	}
	return t
}

// Catching replaces a matching failure with handler's result.
// Chained calls see the failure produced by the previous one.
// Classified failures and nil handler results leave t unchanged.
func (t Try[A]) Catching(match Matcher, handler func(error) error) Try[A] {
	if t.err == nil || classified(t.err) || !match(t.err) {
		return t
	}

	if mapped := handler(t.err); mapped != nil {
		return Fail[A](mapped)
	}

	return t
}

// Catch evaluates rules in order, once; the first matching rule maps the failure.
func (t Try[A]) Catch(rules ...Rule) Try[A] {
	if t.err == nil || classified(t.err) {
		return t
	}

	for _, r := range rules {
		if !r.Match(t.err) {
			continue
		}
		if mapped := r.Map(t.err); mapped != nil {
			return Fail[A](mapped)
		}
		return t
	}

	return t
}

func classified(err error) bool {
	var c interface{ Classified() bool }
	return errors.As(err, &c) && c.Classified()
}
