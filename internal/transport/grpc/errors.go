package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/store"
)

const errorDomain = "padelagenda"

// statusFor maps a service error to a gRPC status. Unexpected errors are
// logged and reported without detail.
func statusFor(log *slog.Logger, err error, what string) error {
	var perr *domain.PermissionError
	var verr *domain.ValidationError
	var nerr *domain.NotFoundError
	switch {
	case errors.As(err, &perr):
		log.Info("permission denied", slog.String("code", string(perr.Code)))
		return permissionStatus(perr)
	case errors.As(err, &verr):
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.As(err, &nerr):
		log.Info("not found", slog.String("what", nerr.Resource))
		return status.Error(codes.NotFound, nerr.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info("not found", slog.String("what", what))
		return status.Error(codes.NotFound, what+" not found")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("deadline exceeded", slog.Any("err", err))
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	default:
		log.Error(what+" failed", slog.Any("err", err))
		return status.Error(codes.Internal, "internal error")
	}
}

func permissionStatus(perr *domain.PermissionError) error {
	code := codes.PermissionDenied
	switch perr.Code {
	case domain.CodeActorIdentityRequired, domain.CodeActorNotRegistered:
		code = codes.Unauthenticated
	}
	st := status.New(code, string(perr.Code))
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(perr.Code),
		Domain: errorDomain,
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// PermissionCode extracts the permission code carried by a status error.
func PermissionCode(err error) (domain.PermissionCode, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return "", false
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == errorDomain {
			return domain.PermissionCode(info.Reason), true
		}
	}
	return "", false
}

func invalidArgument(log *slog.Logger, reason, msg string) error {
	log.Warn("invalid request", slog.String("reason", reason))
	return status.Error(codes.InvalidArgument, msg)
}
