package client

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"

	"github.com/r-heap47/gamehost/internal/errs"
	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
)

// Error is a classified daemon failure. Its Kind, Entity and Ref mirror the
// daemon side; errors.Is matches the sentinels below.
type Error = errs.Error

var (
	ErrAlreadyExists           = errs.ErrAlreadyExists
	ErrDoesNotExist            = errs.ErrDoesNotExist
	ErrInsufficientResources   = errs.ErrInsufficientResources
	ErrInsufficientAllocations = errs.ErrInsufficientAllocations
	ErrTransport               = errs.ErrTransport
	ErrInvalidConfiguration    = errs.ErrInvalidConfiguration
)

// fromStatus rebuilds the typed failure carried in a status error's ErrorInfo.
// The status error stays in the chain, so status.Code keeps working.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != pbgamehost.ErrorDomain {
			continue
		}

		meta := info.GetMetadata()
		return errs.New(errs.Kind(info.GetReason()), errs.Entity(meta["entity"]), meta["ref"], err)
	}

	return err
}
