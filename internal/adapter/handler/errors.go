package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/factory-orders/internal/core/domain"
)

// failure is the transport view of an error.
type failure struct {
	status  int
	code    codes.Code
	message string
	fields  []domain.FieldError
	data    any
}

// classify maps domain errors onto transport statuses. Anything it does not
// recognise is reported as an internal error without its text.
func classify(err error) failure {
	var (
		verr      *domain.ValidationError
		forbidden *domain.ForbiddenError
		shortage  *domain.InsufficientStockError
		missing   *domain.ProductNotFoundError
	)

	switch {
	case errors.As(err, &verr):
		return failure{http.StatusBadRequest, codes.InvalidArgument, "validation failed", verr.Fields, nil}
	case errors.Is(err, domain.ErrUnauthenticated):
		return failure{http.StatusUnauthorized, codes.Unauthenticated, "authentication required", nil, nil}
	case errors.Is(err, domain.ErrAccountDisabled):
		return failure{http.StatusForbidden, codes.PermissionDenied, "account is disabled", nil, nil}
	case errors.As(err, &forbidden):
		return failure{http.StatusForbidden, codes.PermissionDenied, forbidden.Error(), nil, nil}
	case errors.Is(err, domain.ErrForbidden):
		return failure{http.StatusForbidden, codes.PermissionDenied, "forbidden", nil, nil}
	case errors.Is(err, domain.ErrInvalidCustomer):
		return failure{http.StatusUnprocessableEntity, codes.FailedPrecondition, "customer not found or inactive", nil, nil}
	case errors.As(err, &missing):
		return failure{http.StatusUnprocessableEntity, codes.FailedPrecondition, missing.Error(), nil, nil}
	case errors.As(err, &shortage):
		return failure{http.StatusConflict, codes.FailedPrecondition, shortage.Error(), nil, StockShortage{
			ProductID: shortage.ProductID,
			SKU:       shortage.SKU,
			Available: shortage.Available,
			Requested: shortage.Requested,
		}}
	case errors.Is(err, domain.ErrNotFound):
		return failure{http.StatusNotFound, codes.NotFound, "not found", nil, nil}
	case errors.Is(err, domain.ErrDuplicateRequest):
		return failure{http.StatusConflict, codes.AlreadyExists, "duplicate request", nil, nil}
	}
	return failure{http.StatusInternalServerError, codes.Internal, "internal error", nil, nil}
}
