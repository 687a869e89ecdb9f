package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case "23505", "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrBookNotFound         = errors.New("book not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrReviewNotFound       = errors.New("review not found")
	ErrPromotionNotFound    = errors.New("promotion not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrEmailTaken           = errors.New("email already registered")
	ErrDuplicateReview      = errors.New("user already reviewed this book")
	ErrPromotionInactive    = errors.New("promotion is not active")
	ErrPromotionExpired     = errors.New("promotion has expired")
	ErrPromotionMinNotMet   = errors.New("order subtotal below promotion minimum")
	ErrPaymentNotConfirmed  = errors.New("payment not confirmed")
	ErrPaymentAlreadyUsed   = errors.New("payment intent already used for another order")
	ErrOrderNotCancellable  = errors.New("only pending orders can be cancelled")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrOptimisticLockFailed = errors.New("optimistic lock failed")
	ErrLockTimeout          = errors.New("lock timeout")
)
