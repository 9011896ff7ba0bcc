// Package handler exposes the storefront over HTTP. Routes delegate to the
// domain services and translate between the JSON wire format and domain
// types.
package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/majida-lubana/pure-botanica/internal/auth"
	"github.com/majida-lubana/pure-botanica/internal/domain/cart"
	"github.com/majida-lubana/pure-botanica/internal/domain/catalog"
	"github.com/majida-lubana/pure-botanica/internal/domain/coupon"
	"github.com/majida-lubana/pure-botanica/internal/domain/order"
	"github.com/majida-lubana/pure-botanica/internal/domain/referral"
	"github.com/majida-lubana/pure-botanica/internal/domain/wallet"
)

// Handler holds the domain dependencies behind the HTTP API.
type Handler struct {
	products   catalog.Repository
	categories catalog.CategoryRepository
	carts      *cart.Service
	coupons    coupon.Repository
	evaluator  *coupon.Evaluator
	orders     *order.Service
	wallets    *wallet.Service
	referrals  *referral.Service
	authn      *auth.Authenticator
	now        func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products catalog.Repository,
	categories catalog.CategoryRepository,
	carts *cart.Service,
	coupons coupon.Repository,
	evaluator *coupon.Evaluator,
	orders *order.Service,
	wallets *wallet.Service,
	referrals *referral.Service,
	authn *auth.Authenticator,
) *Handler {
	return &Handler{
		products:   products,
		categories: categories,
		carts:      carts,
		coupons:    coupons,
		evaluator:  evaluator,
		orders:     orders,
		wallets:    wallets,
		referrals:  referrals,
		authn:      authn,
		now:        time.Now,
	}
}

// Routes builds the API mux. Storefront routes require an authenticated
// principal; admin routes additionally require the admin flag.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Public catalog.
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("GET /api/categories", h.listCategories)

	// Payment gateway callbacks carry their own order reference.
	mux.HandleFunc("POST /api/payments/webhook", h.paymentWebhook)

	// Authenticated storefront.
	mux.Handle("GET /api/cart", h.user(h.viewCart))
	mux.Handle("POST /api/cart/items", h.user(h.addCartItem))
	mux.Handle("PUT /api/cart/items/{productID}", h.user(h.setCartQuantity))
	mux.Handle("DELETE /api/cart/items/{productID}", h.user(h.removeCartItem))
	mux.Handle("DELETE /api/cart", h.user(h.clearCart))

	mux.Handle("GET /api/coupons", h.user(h.listAvailableCoupons))
	mux.Handle("POST /api/coupons/preview", h.user(h.previewCoupon))

	mux.Handle("POST /api/orders", h.user(h.placeOrder))
	mux.Handle("GET /api/orders", h.user(h.listOrders))
	mux.Handle("GET /api/orders/{id}", h.user(h.getOrder))
	mux.Handle("POST /api/orders/{id}/items/{productID}/cancel", h.user(h.cancelItem))
	mux.Handle("POST /api/orders/{id}/items/{productID}/return", h.user(h.returnItem))

	mux.Handle("GET /api/wallet", h.user(h.getWallet))
	mux.Handle("GET /api/wallet/transactions", h.user(h.walletHistory))
	mux.Handle("PUT /api/wallet/checkout-preference", h.user(h.setWalletPreference))

	mux.Handle("GET /api/referral", h.user(h.getReferral))
	mux.Handle("POST /api/referral/redeem", h.user(h.redeemReferral))

	// Admin.
	mux.Handle("POST /api/admin/products", h.admin(h.createProduct))
	mux.Handle("PUT /api/admin/products/{id}", h.admin(h.updateProduct))
	mux.Handle("DELETE /api/admin/products/{id}", h.admin(h.deleteProduct))
	mux.Handle("POST /api/admin/categories", h.admin(h.createCategory))
	mux.Handle("PUT /api/admin/categories/{id}", h.admin(h.updateCategory))
	mux.Handle("GET /api/admin/coupons", h.admin(h.listCoupons))
	mux.Handle("POST /api/admin/coupons", h.admin(h.createCoupon))
	mux.Handle("PUT /api/admin/coupons/{code}", h.admin(h.updateCoupon))
	mux.Handle("POST /api/admin/orders/{id}/items/{productID}/status", h.admin(h.advanceItem))
	mux.Handle("POST /api/admin/orders/{id}/items/{productID}/verify-return", h.admin(h.verifyReturn))

	return mux
}

// user authenticates the request and stores the principal in the context.
func (h *Handler) user(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.authenticate(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// admin is like user but additionally requires the admin flag.
func (h *Handler) admin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.authenticate(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !p.IsAdmin {
			writeError(w, r, auth.ErrForbidden)
			return
		}
		next(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// authenticate resolves the API key from the Authorization bearer token or
// the api_key header.
func (h *Handler) authenticate(r *http.Request) (auth.Principal, error) {
	key := r.Header.Get("api_key")
	if v := r.Header.Get("Authorization"); v != "" {
		if rest, ok := strings.CutPrefix(v, "Bearer "); ok {
			key = rest
		}
	}
	if key == "" {
		return auth.Principal{}, auth.ErrUnauthorized
	}
	return h.authn.Authenticate(r.Context(), key)
}

// principal returns the authenticated principal; routes behind user/admin
// always have one.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// writeJSON encodes a response body with jx and writes it with the status.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := &jx.Encoder{}
	encode(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeBody streams the request body through a jx object decoder. Any
// malformed payload maps to a 400.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	d := jx.Decode(r.Body, 4096)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	}); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}

// pagination reads limit/offset query parameters with sane bounds.
func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
