package grpc

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
)

// toStatus 將帳本錯誤轉成 gRPC status
// 業務錯誤附上 ErrorInfo，Reason 為 ErrorKind 名稱，客戶端可還原成哨兵錯誤
func toStatus(err error) error {
	kind := domain.KindOf(err)
	if kind == domain.ErrorKindUnknown {
		return status.Error(infraCode(err), err.Error())
	}

	st := status.New(kindCode(kind), err.Error())
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: kind.String(),
		Domain: ServiceName,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

func kindCode(kind domain.ErrorKind) codes.Code {
	switch kind {
	case domain.ErrorKindZeroDeposit, domain.ErrorKindZeroWithdrawal:
		return codes.InvalidArgument
	case domain.ErrorKindInsufficientBalance, domain.ErrorKindWithdrawalLimitExceeded:
		return codes.FailedPrecondition
	case domain.ErrorKindTransferFailed:
		return codes.Aborted
	case domain.ErrorKindBalanceOverflow:
		return codes.OutOfRange
	}
	return codes.Internal
}

func infraCode(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidAddress):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrLedgerClosed):
		return codes.Unavailable
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

// statusError 客戶端收到的業務錯誤
// 保留伺服器的訊息與 status，並可用 errors.Is 比對 domain 的哨兵錯誤
type statusError struct {
	kind   domain.ErrorKind
	status *status.Status
}

func (e *statusError) Error() string {
	return e.status.Message()
}

func (e *statusError) Unwrap() error {
	return domain.Sentinel(e.kind)
}

func (e *statusError) GRPCStatus() *status.Status {
	return e.status
}

// fromStatus 還原伺服器回傳的帳本錯誤，其他錯誤原樣回傳
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ServiceName {
			continue
		}
		if kind := domain.ParseErrorKind(info.GetReason()); kind != domain.ErrorKindUnknown {
			return &statusError{kind: kind, status: st}
		}
	}
	return err
}
