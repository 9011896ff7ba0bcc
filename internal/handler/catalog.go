package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/majida-lubana/pure-botanica/internal/domain/catalog"
	"github.com/majida-lubana/pure-botanica/internal/domain/pricing"
)

// listProducts returns the visible catalog with effective prices computed at
// request time. Admins see hidden products too via ?all=true.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	includeHidden := false
	if r.URL.Query().Get("all") == "true" {
		if p, err := h.authenticate(r); err == nil && p.IsAdmin {
			includeHidden = true
		}
	}

	products, err := h.products.List(r.Context(), includeHidden)
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := h.now()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range products {
				encodeProduct(e, &products[i], now)
			}
		})
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p.Status == catalog.ProductDeleted || p.Status == catalog.ProductInactive || p.Blocked {
		writeError(w, r, catalog.ErrProductNotFound)
		return
	}

	now := h.now()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProduct(e, p, now)
	})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := h.now()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range categories {
				encodeCategory(e, &categories[i], now)
			}
		})
	})
}

// createProduct is the admin product creation endpoint.
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	p := catalog.Product{Status: catalog.ProductAvailable}
	if err := decodeProduct(r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if err := p.Normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.products.Create(r.Context(), &p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeProduct(e, &p, h.now())
	})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	existing, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := decodeProduct(r, existing); err != nil {
		writeError(w, r, err)
		return
	}
	if err := existing.Normalize(); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.products.Update(r.Context(), existing); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProduct(e, existing, h.now())
	})
}

// deleteProduct soft-deletes: the product disappears from the storefront but
// existing order lines keep referencing it.
func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	p.Status = catalog.ProductDeleted

	if err := h.products.Update(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var c catalog.Category
	if err := decodeCategory(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if err := c.ValidateOffer(); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.categories.Create(r.Context(), &c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeCategory(e, &c, h.now())
	})
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	existing, err := h.categories.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := decodeCategory(r, existing); err != nil {
		writeError(w, r, err)
		return
	}
	if err := existing.ValidateOffer(); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.categories.Update(r.Context(), existing); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCategory(e, existing, h.now())
	})
}

func encodeProduct(e *jx.Encoder, p *catalog.Product, now time.Time) {
	quote := pricing.Compute(*p, now)
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		if p.Category != nil {
			e.Field("category", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Str(p.Category.ID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(p.Category.Name) })
				})
			})
		}
		e.Field("regular_price", func(e *jx.Encoder) { e.Float64(quote.OriginalPrice.InexactFloat64()) })
		e.Field("price", func(e *jx.Encoder) { e.Float64(quote.DisplayPrice.InexactFloat64()) })
		e.Field("savings", func(e *jx.Encoder) { e.Float64(quote.Savings.InexactFloat64()) })
		e.Field("discount_percent", func(e *jx.Encoder) { e.Float64(quote.DiscountPercent.InexactFloat64()) })
		e.Field("on_offer", func(e *jx.Encoder) { e.Bool(quote.IsOnOffer) })
		if quote.Source != "" {
			e.Field("offer_source", func(e *jx.Encoder) { e.Str(string(quote.Source)) })
		}
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(p.Status)) })
	})
}

func encodeCategory(e *jx.Encoder, c *catalog.Category, now time.Time) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
		e.Field("offer_percent", func(e *jx.Encoder) { e.Float64(c.OfferAt(now).InexactFloat64()) })
		e.Field("offer_active", func(e *jx.Encoder) { e.Bool(!c.OfferAt(now).IsZero()) })
	})
}

func decodeProduct(r *http.Request, p *catalog.Product) error {
	return decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "category_id":
			p.CategoryID, err = d.Str()
		case "regular_price":
			p.RegularPrice, err = decodeDecimal(d)
		case "sale_price":
			p.SalePrice, err = decodeDecimal(d)
		case "offer_percent":
			p.OfferPercent, err = decodeDecimal(d)
		case "stock":
			p.Stock, err = d.Int()
		case "status":
			var s string
			s, err = d.Str()
			p.Status = catalog.ProductStatus(s)
		case "blocked":
			p.Blocked, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeCategory(r *http.Request, c *catalog.Category) error {
	return decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Str()
		case "name":
			c.Name, err = d.Str()
		case "description":
			c.Description, err = d.Str()
		case "offer_percent":
			c.OfferPercent, err = decodeDecimal(d)
		case "offer_starts_at":
			c.OfferStartsAt, err = decodeTimePtr(d)
		case "offer_ends_at":
			c.OfferEndsAt, err = decodeTimePtr(d)
		case "offer_active":
			c.OfferActive, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}

func decodeTimePtr(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
