package v1

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/r-heap47/gamehost/internal/errs"
	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
)

// ErrorDomain is the ErrorInfo domain of classified failures.
const ErrorDomain = pbgamehost.ErrorDomain

var kindCodes = map[errs.Kind]codes.Code{
	errs.KindAlreadyExists:           codes.AlreadyExists,
	errs.KindDoesNotExist:            codes.NotFound,
	errs.KindInsufficientResources:   codes.ResourceExhausted,
	errs.KindInsufficientAllocations: codes.ResourceExhausted,
	errs.KindTransport:               codes.Unavailable,
	errs.KindInvalidConfiguration:    codes.FailedPrecondition,
}

// CodeOf returns the status code a domain failure kind is reported with.
func CodeOf(kind errs.Kind) codes.Code {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return codes.Internal
}

// toStatus converts a failure of op into a status error. Domain failures carry
// an ErrorInfo with their kind, entity and reference.
func toStatus(op string, err error) error {
	msg := fmt.Sprintf("%s: %s", op, err)

	de, ok := errs.As(err)
	if !ok {
		switch {
		case errors.Is(err, context.Canceled):
			return status.Error(codes.Canceled, msg)
		case errors.Is(err, context.DeadlineExceeded):
			return status.Error(codes.DeadlineExceeded, msg)
		default:
			return status.Error(codes.Internal, msg)
		}
	}

	st := status.New(CodeOf(de.Kind), msg)

	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(de.Kind),
		Domain: ErrorDomain,
		Metadata: map[string]string{
			"entity": string(de.Entity),
			"ref":    de.Ref,
		},
	})
	if derr != nil {
		return st.Err()
	}

	return detailed.Err()
}

func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}
