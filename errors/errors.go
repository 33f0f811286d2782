package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrResolutionFailed   = fmt.Errorf("name resolution failed")
	ErrDeliveryFailed     = fmt.Errorf("message delivery failed")
	ErrInvalidHandleState = fmt.Errorf("invalid handle state")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyMessage       = fmt.Errorf("message is empty")
	ErrInvalidName        = fmt.Errorf("invalid display name")
	ErrOffline            = fmt.Errorf("transport is offline")
	ErrUnknownHandle      = fmt.Errorf("unknown remote handle")
	ErrUnknownMethod      = fmt.Errorf("unknown remote method")
	ErrNotAnnounced       = fmt.Errorf("no service announced")
	ErrAlreadyDiscovering = fmt.Errorf("discovery already started")
)

// DeliveryError reports a failed invocation of one peer during a broadcast.
type DeliveryError struct {
	Peer string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s to %s: %v", ErrDeliveryFailed, e.Peer, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{ErrDeliveryFailed, e.Err}
}

// MapToGRPCError translates domain errors into gRPC status errors.
func MapToGRPCError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotAnnounced), errors.Is(err, ErrUnknownMethod):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrOffline):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidName):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FromGRPCError translates a status returned by a remote messenger back into domain errors.
func FromGRPCError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotAnnounced, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", ErrOffline, st.Message())
	default:
		return err
	}
}
