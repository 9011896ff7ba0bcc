package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
)

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	wal, err := h.wallets.Balance(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("balance", func(e *jx.Encoder) { e.Float64(wal.Balance.InexactFloat64()) })
			e.Field("use_in_checkout", func(e *jx.Encoder) { e.Bool(wal.UseInCheckout) })
		})
	})
}

func (h *Handler) walletHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	txns, err := h.wallets.History(r.Context(), principal(r).UserID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, t := range txns {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Str(t.ID) })
					if t.OrderID != "" {
						e.Field("order_id", func(e *jx.Encoder) { e.Str(t.OrderID) })
					}
					e.Field("amount", func(e *jx.Encoder) { e.Float64(t.Amount.InexactFloat64()) })
					e.Field("type", func(e *jx.Encoder) { e.Str(string(t.Type)) })
					e.Field("status", func(e *jx.Encoder) { e.Str(string(t.Status)) })
					e.Field("description", func(e *jx.Encoder) { e.Str(t.Description) })
					e.Field("created_at", func(e *jx.Encoder) { e.Str(t.CreatedAt.Format(time.RFC3339)) })
				})
			}
		})
	})
}

func (h *Handler) setWalletPreference(w http.ResponseWriter, r *http.Request) {
	var use bool
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "use_in_checkout":
			use, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.wallets.SetUseInCheckout(r.Context(), principal(r).UserID, use); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
