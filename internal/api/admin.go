package api

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leafpress/go-bookstore/internal/models"
	"github.com/leafpress/go-bookstore/internal/store"
)

// AdminContext bundles what every admin handler needs: the database and the
// audit-log retention window.
type AdminContext struct {
	DB             *sql.DB
	AuditRetention time.Duration
}

// Audit records an admin action. Best-effort: a failed audit write is logged
// and the admin operation still succeeds.
func (a *AdminContext) Audit(r *http.Request, action, entity string, entityID int64, detail string) {
	claims := claimsFrom(r)
	err := store.AppendAuditLog(r.Context(), a.DB, store.AuditEntry{
		ActorID:    claims.UserID,
		ActorEmail: claims.Email,
		Action:     action,
		Entity:     entity,
		EntityID:   strconv.FormatInt(entityID, 10),
		Detail:     detail,
	}, a.AuditRetention)
	if err != nil {
		log.Printf("Audit log %s %s/%d: %v", action, entity, entityID, err)
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

type promotionRequest struct {
	Code          string  `json:"code"`
	Type          string  `json:"type"`
	Value         float64 `json:"value"`
	MinOrderValue float64 `json:"min_order_value"`
	Active        bool    `json:"active"`
	ExpiresAt     *string `json:"expires_at"`
}

func (req *promotionRequest) toInput() (store.PromotionInput, string) {
	if strings.TrimSpace(req.Code) == "" {
		return store.PromotionInput{}, "code is required"
	}

	promoType := models.PromotionType(req.Type)
	if promoType != models.PromotionPercent && promoType != models.PromotionFlat {
		return store.PromotionInput{}, "type must be percent or flat"
	}
	if req.Value <= 0 {
		return store.PromotionInput{}, "value must be positive"
	}
	if promoType == models.PromotionPercent && req.Value > 100 {
		return store.PromotionInput{}, "percent value must not exceed 100"
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil && *req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return store.PromotionInput{}, "expires_at must be RFC 3339"
		}
		expiresAt = &t
	}

	return store.PromotionInput{
		Code:          req.Code,
		Type:          promoType,
		Value:         decimal.NewFromFloat(req.Value),
		MinOrderValue: decimal.NewFromFloat(req.MinOrderValue),
		Active:        req.Active,
		ExpiresAt:     expiresAt,
	}, ""
}

func HandleListPromotions(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		promos, err := store.ListPromotions(r.Context(), a.DB)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{"items": promos})
	}
}

func HandleCreatePromotion(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req promotionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		input, problem := req.toInput()
		if problem != "" {
			respondError(w, http.StatusBadRequest, problem)
			return
		}

		promo, err := store.CreatePromotion(r.Context(), a.DB, input)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		a.Audit(r, "promotion.create", "promotion", promo.ID, promo.Code)
		respondJSON(w, http.StatusCreated, promo)
	}
}

func HandleUpdatePromotion(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid promotion ID")
			return
		}

		var req promotionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		input, problem := req.toInput()
		if problem != "" {
			respondError(w, http.StatusBadRequest, problem)
			return
		}

		promo, err := store.UpdatePromotion(r.Context(), a.DB, id, input)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		a.Audit(r, "promotion.update", "promotion", promo.ID, promo.Code)
		respondJSON(w, http.StatusOK, promo)
	}
}

func HandleDeletePromotion(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid promotion ID")
			return
		}

		if err := store.DeletePromotion(r.Context(), a.DB, id); err != nil {
			respondStoreError(w, err)
			return
		}

		a.Audit(r, "promotion.delete", "promotion", id, "")
		respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func HandleAdminListOrders(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, pageSize := parsePagination(r)

		result, err := store.ListOrders(r.Context(), a.DB, r.URL.Query().Get("status"), page, pageSize)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}

func HandleUpdateOrderStatus(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid order ID")
			return
		}

		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		order, err := store.UpdateOrderStatus(r.Context(), a.DB, id, req.Status)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		a.Audit(r, "order.status", "order", id, order.Status)
		respondJSON(w, http.StatusOK, order)
	}
}

func HandleSalesSummary(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := store.GetSalesSummary(r.Context(), a.DB)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, summary)
	}
}

func HandleDailySales(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, _ := strconv.Atoi(r.URL.Query().Get("days"))
		if days < 1 || days > 365 {
			days = 30
		}

		series, err := store.GetDailySales(r.Context(), a.DB, days)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{"days": days, "series": series})
	}
}

func HandleCategorySales(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		breakdown, err := store.GetCategorySales(r.Context(), a.DB)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{"categories": breakdown})
	}
}

func HandleListAuditLogs(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, pageSize := parsePagination(r)

		result, err := store.ListAuditLogs(r.Context(), a.DB, page, pageSize)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}
