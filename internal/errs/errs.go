package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind string

// Entity names the kind of object a failure refers to.
type Entity string

const (
	KindAlreadyExists           Kind = "already_exists"
	KindDoesNotExist            Kind = "does_not_exist"
	KindInsufficientResources   Kind = "insufficient_resources"
	KindInsufficientAllocations Kind = "insufficient_allocations"
	KindTransport               Kind = "transport"
	KindInvalidConfiguration    Kind = "invalid_configuration"
)

const (
	EntityServer Entity = "server"
	EntityUser   Entity = "user"
	EntityEgg    Entity = "egg"
	EntityNode   Entity = "node"
)

var (
	// ErrAlreadyExists - entity with the same natural key is already present on the panel
	ErrAlreadyExists = errors.New("already exists")
	// ErrDoesNotExist - referenced entity could not be resolved
	ErrDoesNotExist = errors.New("does not exist")
	// ErrInsufficientResources - no eligible node can host a new server
	ErrInsufficientResources = errors.New("insufficient resources")
	// ErrInsufficientAllocations - chosen node has no free allocation
	ErrInsufficientAllocations = errors.New("insufficient allocations")
	// ErrTransport - panel call failed or timed out
	ErrTransport = errors.New("transport failure")
	// ErrInvalidConfiguration - configuration rejected at construction
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

var sentinels = map[Kind]error{
	KindAlreadyExists:           ErrAlreadyExists,
	KindDoesNotExist:            ErrDoesNotExist,
	KindInsufficientResources:   ErrInsufficientResources,
	KindInsufficientAllocations: ErrInsufficientAllocations,
	KindTransport:               ErrTransport,
	KindInvalidConfiguration:    ErrInvalidConfiguration,
}

// Error is a classified domain failure. Ref carries the offending name, uuid or email.
type Error struct {
	Kind   Kind
	Entity Entity
	Ref    string
	Err    error
}

// New builds a domain error of the given kind.
func New(kind Kind, entity Entity, ref string, cause error) *Error {
	return &Error{Kind: kind, Entity: entity, Ref: ref, Err: cause}
}

func (e *Error) Error() string {
	var msg string

	switch {
	case e.Entity != "" && e.Ref != "":
		msg = fmt.Sprintf("%s %q: %s", e.Entity, e.Ref, e.sentinel())
	case e.Entity != "":
		msg = fmt.Sprintf("%s: %s", e.Entity, e.sentinel())
	case e.Ref != "":
		msg = fmt.Sprintf("%s: %s", e.Ref, e.sentinel())
	default:
		msg = e.sentinel().Error()
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

// Classified marks domain errors as terminal for try rule dispatch.
func (e *Error) Classified() bool { return true }

func (e *Error) sentinel() error {
	if s, ok := sentinels[e.Kind]; ok {
		return s
	}
	return ErrTransport
}

// As extracts the domain error from err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf returns the kind of the domain error in err's chain, or "" when err is unclassified.
func KindOf(err error) Kind {
	if de, ok := As(err); ok {
		return de.Kind
	}
	return ""
}

// Wrap leaves domain errors untouched and turns anything else into a transport failure for op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return Transport(op, err)
}

func ServerAlreadyExists(name string) *Error {
	return New(KindAlreadyExists, EntityServer, name, nil)
}

func ServerDoesNotExist(ref string) *Error {
	return New(KindDoesNotExist, EntityServer, ref, nil)
}

func UserAlreadyExists(username string) *Error {
	return New(KindAlreadyExists, EntityUser, username, nil)
}

func UserDoesNotExist(ref string) *Error {
	return New(KindDoesNotExist, EntityUser, ref, nil)
}

func EggDoesNotExist(name string) *Error {
	return New(KindDoesNotExist, EntityEgg, name, nil)
}

func InsufficientResources(cause error) *Error {
	return New(KindInsufficientResources, EntityNode, "", cause)
}

func InsufficientAllocations(node string) *Error {
	return New(KindInsufficientAllocations, EntityNode, node, nil)
}

// Transport classifies a failed or timed out panel call.
func Transport(op string, cause error) *Error {
	if errors.Is(cause, context.DeadlineExceeded) {
		cause = fmt.Errorf("timed out: %w", cause)
	}
	return New(KindTransport, "", op, cause)
}

// InvalidConfiguration reports a rejected configuration field.
func InvalidConfiguration(field string, cause error) *Error {
	return New(KindInvalidConfiguration, "", field, cause)
}
