package try

import "errors"

// Matcher decides whether a rule applies to a failure.
type Matcher func(error) bool

// Rule maps a matching failure to another error.
type Rule struct {
	Match Matcher
	Map   func(error) error
}

// When builds a Rule.
func When(match Matcher, to func(error) error) Rule {
	return Rule{Match: match, Map: to}
}

// Is matches failures wrapping target.
func Is(target error) Matcher {
	return func(err error) bool { return errors.Is(err, target) }
}

// As matches failures whose chain contains an E.
func As[E error]() Matcher {
	return func(err error) bool {
		var e E
		return errors.As(err, &e)
	}
}

// Any matches every failure.
func Any() Matcher {
	return func(error) bool { return true }
}

// Const returns a mapping that ignores the original failure.
func Const(err error) func(error) error {
	return func(error) error { return err }
}
