package snapshot

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rxledger/rxledger/internal/domain/prescription"
	"github.com/rxledger/rxledger/internal/platform/token"
)

// Handler serves rendered documents and token verification. The binary
// encodings (PDF, QR) happen downstream; this layer stops at structured JSON.
type Handler struct {
	svc    *prescription.Service
	codec  *token.Codec
	clinic Clinic
	rate   float64
}

func NewHandler(svc *prescription.Service, codec *token.Codec, clinic Clinic, taxRate float64) *Handler {
	return &Handler{svc: svc, codec: codec, clinic: clinic, rate: taxRate}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/prescriptions/:id/document", h.GetDocument)
	api.POST("/tokens/verify", h.VerifyToken)
}

// GetDocument renders the latest version, or the version named by the
// optional batch query parameter.
func (h *Handler) GetDocument(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()

	p, err := h.svc.Get(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
	}

	var items []*prescription.PrescriptionItem
	if batch := c.QueryParam("batch"); batch != "" {
		batchNo, err := strconv.ParseInt(batch, 10, 64)
		if err != nil || batchNo <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid batch")
		}
		items, err = h.svc.VersionAt(ctx, id, batchNo)
		if err != nil {
			if errors.Is(err, prescription.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "version not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	} else {
		items, err = h.svc.LatestVersion(ctx, id)
		if err != nil {
			if errors.Is(err, prescription.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "prescription has no items")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	tok, err := h.codec.Build(id, TokenItems(items))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	doc, err := Render(p, items, Params{
		Clinic:      h.clinic,
		TaxRate:     h.rate,
		Token:       tok,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrEmptyVersion) {
			return echo.NewHTTPError(http.StatusNotFound, "version has no items")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, doc)
}

// TokenItems maps version entries to token payload lines, preserving entry
// order.
func TokenItems(items []*prescription.PrescriptionItem) []token.Item {
	out := make([]token.Item, 0, len(items))
	for _, it := range items {
		out = append(out, token.Item{
			ItemID:     it.ID,
			CatalogRef: it.MedicineID,
			Name:       itemLabel(it),
			Qty:        it.Quantity,
		})
	}
	return out
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// VerifyToken checks a presented token. The response never distinguishes
// tampered from malformed from expired.
func (h *Handler) VerifyToken(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, verifyResponse{Valid: h.codec.Verify(req.Token)})
}
