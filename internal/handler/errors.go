package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/majida-lubana/pure-botanica/internal/auth"
	"github.com/majida-lubana/pure-botanica/internal/domain/cart"
	"github.com/majida-lubana/pure-botanica/internal/domain/catalog"
	"github.com/majida-lubana/pure-botanica/internal/domain/coupon"
	"github.com/majida-lubana/pure-botanica/internal/domain/order"
	"github.com/majida-lubana/pure-botanica/internal/domain/referral"
	"github.com/majida-lubana/pure-botanica/internal/domain/wallet"
)

// writeError maps a domain error to an HTTP status and writes the standard
// error body. Unmapped errors become 500s with the detail kept out of the
// response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, referral.ErrCodeNotFound),
		errors.Is(err, wallet.ErrRefundNotFound):
		return http.StatusNotFound

	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, cart.ErrProductUnavailable),
		errors.Is(err, catalog.ErrInvalidOffer),
		errors.Is(err, catalog.ErrInvalidPricing),
		errors.Is(err, coupon.ErrInvalidDefinition),
		errors.Is(err, wallet.ErrNonPositiveAmount),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest

	case errors.Is(err, catalog.ErrInsufficientStock),
		errors.Is(err, wallet.ErrInsufficientBalance),
		errors.Is(err, order.ErrInvalidCancelState),
		errors.Is(err, order.ErrInvalidReturnState),
		errors.Is(err, order.ErrInvalidItemTransition),
		errors.Is(err, order.ErrReturnExpired),
		errors.Is(err, referral.ErrSelfReferral),
		errors.Is(err, referral.ErrAlreadyInvited):
		return http.StatusConflict

	case errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrNotYetActive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrMinimumNotMet),
		errors.Is(err, coupon.ErrAlreadyUsed),
		errors.Is(err, coupon.ErrUsageLimitReached):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// errBadRequest marks malformed request payloads.
var errBadRequest = errors.New("bad request")
