package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/majida-lubana/pure-botanica/internal/domain/order"
)

// placeOrder is the checkout endpoint. The order is built from the caller's
// current cart: prices come from the cart snapshot, the optional coupon is
// evaluated against the subtotal, and the cart is cleared once the order is
// placed.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var (
		addr       order.Address
		method     string
		couponCode string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "address":
			err = decodeAddress(d, &addr)
		case "payment_method":
			method, err = d.Str()
		case "coupon_code":
			couponCode, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	pm := order.PaymentMethod(method)
	switch pm {
	case order.PaymentCOD, order.PaymentOnline, order.PaymentWallet:
	default:
		writeError(w, r, errBadRequest)
		return
	}

	userID := principal(r).UserID
	c, err := h.carts.View(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(c.Items) == 0 {
		writeError(w, r, order.ErrEmptyItems)
		return
	}

	subtotal := c.Subtotal()
	discount := decimal.Zero
	if couponCode != "" {
		d, err := h.evaluator.Evaluate(r.Context(), userID, couponCode, subtotal)
		if err != nil {
			writeError(w, r, err)
			return
		}
		couponCode = d.Code
		discount = d.Amount
	}

	total := subtotal.Sub(discount)

	// The wallet preference opts the user into spending wallet funds at
	// checkout: when set and the balance covers the whole order, the order
	// is paid from the wallet regardless of the method the client sent.
	if pm != order.PaymentWallet {
		wal, err := h.wallets.Balance(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if wal.UseInCheckout && wal.Balance.GreaterThanOrEqual(total) {
			pm = order.PaymentWallet
		}
	}

	items := make([]order.Item, len(c.Items))
	for i, it := range c.Items {
		items[i] = order.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
		}
	}

	placed, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:        userID,
		Items:         items,
		Address:       addr,
		PaymentMethod: pm,
		CouponCode:    couponCode,
		Subtotal:      subtotal,
		Discount:      discount,
		Total:         total,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.carts.Clear(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, placed) })
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	orders, err := h.orders.ListByUser(r.Context(), principal(r).UserID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.ownedOrder(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) cancelItem(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ownedOrder(r); err != nil {
		writeError(w, r, err)
		return
	}
	reason, err := decodeReason(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.CancelItem(r.Context(), r.PathValue("id"), r.PathValue("productID"), reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) returnItem(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ownedOrder(r); err != nil {
		writeError(w, r, err)
		return
	}
	reason, err := decodeReason(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.ReturnItem(r.Context(), r.PathValue("id"), r.PathValue("productID"), reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// advanceItem is the admin fulfilment endpoint: ordered -> shipped ->
// delivered.
func (h *Handler) advanceItem(w http.ResponseWriter, r *http.Request) {
	var status string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			status, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.AdvanceItem(r.Context(), r.PathValue("id"), r.PathValue("productID"), order.ItemStatus(status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// verifyReturn is the admin decision on a requested return.
func (h *Handler) verifyReturn(w http.ResponseWriter, r *http.Request) {
	var accepted bool
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "accepted":
			accepted, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.VerifyReturn(r.Context(), r.PathValue("id"), r.PathValue("productID"), accepted)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// paymentWebhook consumes the payment gateway's status callbacks for online
// orders.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	var (
		orderID string
		status  string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "order_id":
			orderID, err = d.Str()
		case "status":
			status, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch status {
	case "success":
		err = h.orders.ConfirmPayment(r.Context(), orderID)
	case "failed":
		err = h.orders.FailPayment(r.Context(), orderID)
	default:
		err = errBadRequest
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedOrder loads the order in the path and enforces that it belongs to the
// caller. Admins can reach any order.
func (h *Handler) ownedOrder(r *http.Request) (*order.Order, error) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	p := principal(r)
	if o.UserID != p.UserID && !p.IsAdmin {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func decodeReason(r *http.Request) (string, error) {
	var reason string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "reason":
			reason, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return "", err
	}
	if reason == "" {
		reason = "No reason given"
	}
	return reason, nil
}

func decodeAddress(d *jx.Decoder, addr *order.Address) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			addr.Name, err = d.Str()
		case "line1":
			addr.Line1, err = d.Str()
		case "line2":
			addr.Line2, err = d.Str()
		case "city":
			addr.City, err = d.Str()
		case "state":
			addr.State, err = d.Str()
		case "pincode":
			addr.Pincode, err = d.Str()
		case "phone":
			addr.Phone, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status())) })
		e.Field("status_title", func(e *jx.Encoder) { e.Str(o.Status().Title()) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range o.Items {
					it := &o.Items[i]
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("price", func(e *jx.Encoder) { e.Float64(it.Price.InexactFloat64()) })
						e.Field("status", func(e *jx.Encoder) { e.Str(string(it.Status)) })
						if it.Reason != "" {
							e.Field("reason", func(e *jx.Encoder) { e.Str(it.Reason) })
						}
						if it.DeliveredAt != nil {
							e.Field("delivered_at", func(e *jx.Encoder) { e.Str(it.DeliveredAt.Format(time.RFC3339)) })
						}
					})
				}
			})
		})
		e.Field("timeline", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, ev := range o.Timeline {
					e.Obj(func(e *jx.Encoder) {
						e.Field("label", func(e *jx.Encoder) { e.Str(ev.Label) })
						e.Field("completed", func(e *jx.Encoder) { e.Bool(ev.Completed) })
						e.Field("current", func(e *jx.Encoder) { e.Bool(ev.Current) })
						e.Field("date", func(e *jx.Encoder) { e.Str(ev.At.Format(time.RFC3339)) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { e.Float64(o.Subtotal.InexactFloat64()) })
		e.Field("discount", func(e *jx.Encoder) { e.Float64(o.Discount.InexactFloat64()) })
		e.Field("total", func(e *jx.Encoder) { e.Float64(o.Total.InexactFloat64()) })
		if o.CouponCode != "" {
			e.Field("coupon_code", func(e *jx.Encoder) { e.Str(o.CouponCode) })
		}
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
		e.Field("payment_status", func(e *jx.Encoder) { e.Str(string(o.PaymentStatus)) })
		if o.PaymentRetryUntil != nil {
			e.Field("payment_retry_until", func(e *jx.Encoder) { e.Str(o.PaymentRetryUntil.Format(time.RFC3339)) })
		}
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
	})
}

