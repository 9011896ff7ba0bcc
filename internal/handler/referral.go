package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// getReferral returns the caller's referral code, generating one on first
// use, along with the invites it produced.
func (h *Handler) getReferral(w http.ResponseWriter, r *http.Request) {
	ref, err := h.referrals.EnsureCode(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Str(ref.Code) })
			e.Field("invites", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, inv := range ref.Invites {
						e.Obj(func(e *jx.Encoder) {
							e.Field("status", func(e *jx.Encoder) { e.Str(string(inv.Status)) })
							e.Field("reward", func(e *jx.Encoder) { e.Float64(inv.RewardAmount.InexactFloat64()) })
						})
					}
				})
			})
		})
	})
}

// redeemReferral ties the caller to someone else's referral code.
func (h *Handler) redeemReferral(w http.ResponseWriter, r *http.Request) {
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

	if err := h.referrals.RegisterInvite(r.Context(), code, principal(r).UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
