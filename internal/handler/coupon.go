package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/majida-lubana/pure-botanica/internal/domain/coupon"
)

// listAvailableCoupons returns listed, in-window coupons annotated with
// usability against the caller's current cart.
func (h *Handler) listAvailableCoupons(w http.ResponseWriter, r *http.Request) {
	userID := principal(r).UserID
	c, err := h.carts.View(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	available, err := h.evaluator.ListAvailable(r.Context(), userID, c.Subtotal())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range available {
				a := &available[i]
				e.Obj(func(e *jx.Encoder) {
					encodeCouponFields(e, &a.Coupon)
					e.Field("usable", func(e *jx.Encoder) { e.Bool(a.Usable) })
					if a.Reason != "" {
						e.Field("reason", func(e *jx.Encoder) { e.Str(a.Reason) })
					}
				})
			}
		})
	})
}

// previewCoupon evaluates a code against the caller's cart without placing an
// order, returning the discount that checkout would grant.
func (h *Handler) previewCoupon(w http.ResponseWriter, r *http.Request) {
	var code string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	userID := principal(r).UserID
	c, err := h.carts.View(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	discount, err := h.evaluator.Evaluate(r.Context(), userID, code, c.Subtotal())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Str(discount.Code) })
			e.Field("discount", func(e *jx.Encoder) { e.Float64(discount.Amount.InexactFloat64()) })
			e.Field("subtotal", func(e *jx.Encoder) { e.Float64(c.Subtotal().InexactFloat64()) })
			e.Field("total", func(e *jx.Encoder) { e.Float64(c.Subtotal().Sub(discount.Amount).InexactFloat64()) })
		})
	})
}

// listCoupons is the admin listing of all coupon definitions.
func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	all, err := h.coupons.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range all {
				e.Obj(func(e *jx.Encoder) { encodeCouponFields(e, &all[i]) })
			}
		})
	})
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	c := coupon.Coupon{Listed: true}
	if err := decodeCoupon(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	if err := c.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.coupons.Create(r.Context(), &c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) { encodeCouponFields(e, &c) })
	})
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	existing, err := h.coupons.FindByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := decodeCoupon(r, existing); err != nil {
		writeError(w, r, err)
		return
	}
	if err := existing.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.coupons.Update(r.Context(), existing); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) { encodeCouponFields(e, existing) })
	})
}

func encodeCouponFields(e *jx.Encoder, c *coupon.Coupon) {
	e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
	e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
	e.Field("value", func(e *jx.Encoder) { e.Float64(c.Value.InexactFloat64()) })
	if c.MaxDiscount.IsPositive() {
		e.Field("max_discount", func(e *jx.Encoder) { e.Float64(c.MaxDiscount.InexactFloat64()) })
	}
	e.Field("minimum_order", func(e *jx.Encoder) { e.Float64(c.MinimumOrder.InexactFloat64()) })
	if c.ExpiresOn != nil {
		e.Field("expires_on", func(e *jx.Encoder) { e.Str(c.ExpiresOn.Format("2006-01-02")) })
	}
	e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
}

func decodeCoupon(r *http.Request, c *coupon.Coupon) error {
	return decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			c.Code, err = d.Str()
		case "type":
			var s string
			s, err = d.Str()
			c.Type = coupon.DiscountType(s)
		case "value":
			c.Value, err = decodeDecimal(d)
		case "max_discount":
			c.MaxDiscount, err = decodeDecimal(d)
		case "minimum_order":
			c.MinimumOrder, err = decodeDecimal(d)
		case "starts_at":
			c.StartsAt, err = decodeTimePtr(d)
		case "expires_on":
			c.ExpiresOn, err = decodeTimePtr(d)
		case "usage_limit":
			c.UsageLimit, err = d.Int()
		case "listed":
			c.Listed, err = d.Bool()
		case "description":
			c.Description, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}
