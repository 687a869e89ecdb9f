package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/leafpress/go-bookstore/internal/invoice"
	"github.com/leafpress/go-bookstore/internal/models"
	"github.com/leafpress/go-bookstore/internal/store"
)

// PaymentVerifier confirms a payment intent reached the succeeded state.
type PaymentVerifier interface {
	VerifySucceeded(ctx context.Context, intentID string) error
}

// OrderMailer sends order lifecycle mail. Failures are logged, never fatal.
type OrderMailer interface {
	SendOrderConfirmation(order *models.Order, customer *models.User, invoicePDF []byte) error
	SendOrderCancelled(order *models.Order, customer *models.User) error
}

type checkoutRequest struct {
	Items []struct {
		BookID   int64 `json:"book_id"`
		Quantity int   `json:"qty"`
	} `json:"items"`
	PromotionCode   string `json:"promotion_code"`
	PaymentIntentID string `json:"payment_intent_id"`
	ShippingAddress string `json:"shipping_address"`
}

// HandleCheckout is the payment-confirmation sequence: recompute prices
// server-side, validate the promotion, confirm the payment intent, then
// persist the order and adjust stock in one transaction. Email and invoice
// are best-effort afterwards.
func HandleCheckout(db *sql.DB, payments PaymentVerifier, mail OrderMailer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if len(req.Items) == 0 {
			respondError(w, http.StatusBadRequest, "cart is empty")
			return
		}
		if strings.TrimSpace(req.PaymentIntentID) == "" {
			respondError(w, http.StatusBadRequest, "payment_intent_id is required")
			return
		}
		if strings.TrimSpace(req.ShippingAddress) == "" {
			respondError(w, http.StatusBadRequest, "shipping_address is required")
			return
		}

		items := make([]store.OrderItemRequest, 0, len(req.Items))
		for _, item := range req.Items {
			if item.Quantity <= 0 {
				respondError(w, http.StatusBadRequest,
					fmt.Sprintf("invalid quantity for book %d", item.BookID))
				return
			}
			items = append(items, store.OrderItemRequest{
				BookID:   item.BookID,
				Quantity: item.Quantity,
			})
		}

		// Nothing is written until the provider confirms the charge.
		if err := payments.VerifySucceeded(r.Context(), req.PaymentIntentID); err != nil {
			respondStoreError(w, err)
			return
		}

		claims := claimsFrom(r)
		order, err := store.PlaceOrder(r.Context(), db, store.PlaceOrderRequest{
			UserID:          claims.UserID,
			Items:           items,
			PromotionCode:   req.PromotionCode,
			PaymentID:       req.PaymentIntentID,
			ShippingAddress: req.ShippingAddress,
		})
		if err != nil {
			respondStoreError(w, err)
			return
		}

		if err := store.ClearCart(r.Context(), db, claims.UserID); err != nil {
			log.Printf("Clear cart after checkout for user %d: %v", claims.UserID, err)
		}

		sendConfirmation(r.Context(), db, mail, order)

		respondJSON(w, http.StatusCreated, order)
	}
}

func sendConfirmation(ctx context.Context, db *sql.DB, mail OrderMailer, order *models.Order) {
	customer, err := store.GetUser(ctx, db, order.UserID)
	if err != nil {
		log.Printf("Load customer for order %s confirmation: %v", order.OrderNumber, err)
		return
	}

	pdf, err := invoice.Render(order, customer)
	if err != nil {
		log.Printf("Render invoice for order %s: %v", order.OrderNumber, err)
		pdf = nil
	}

	if err := mail.SendOrderConfirmation(order, customer, pdf); err != nil {
		log.Printf("Send confirmation for order %s: %v", order.OrderNumber, err)
	}
}

func HandleListOrders(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit < 1 || limit > 100 {
			limit = 20
		}

		page, err := store.ListOrdersCursor(r.Context(), db, claimsFrom(r).UserID, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, page)
	}
}

// loadOwnedOrder fetches the order and enforces owner-or-admin access.
func loadOwnedOrder(r *http.Request, db *sql.DB) (*models.Order, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, fmt.Errorf("invalid order id")
	}

	order, err := store.GetOrder(r.Context(), db, id)
	if err != nil {
		return nil, err
	}

	claims := claimsFrom(r)
	if order.UserID != claims.UserID && claims.Role != models.RoleAdmin {
		return nil, fmt.Errorf("order not visible to caller")
	}

	return order, nil
}

func HandleGetOrder(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := loadOwnedOrder(r, db)
		if err != nil {
			respondError(w, http.StatusNotFound, "order not found")
			return
		}

		respondJSON(w, http.StatusOK, order)
	}
}

func HandleCancelOrder(db *sql.DB, mail OrderMailer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid order ID")
			return
		}

		claims := claimsFrom(r)
		order, err := store.CancelOrder(r.Context(), db, id, claims.UserID)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		if customer, err := store.GetUser(r.Context(), db, claims.UserID); err == nil {
			if err := mail.SendOrderCancelled(order, customer); err != nil {
				log.Printf("Send cancellation mail for order %s: %v", order.OrderNumber, err)
			}
		}

		respondJSON(w, http.StatusOK, order)
	}
}

func HandleOrderInvoice(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := loadOwnedOrder(r, db)
		if err != nil {
			respondError(w, http.StatusNotFound, "order not found")
			return
		}

		customer, err := store.GetUser(r.Context(), db, order.UserID)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		pdf, err := invoice.Render(order, customer)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="invoice-%s.pdf"`, order.OrderNumber))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(pdf); err != nil {
			log.Printf("Write invoice for order %s: %v", order.OrderNumber, err)
		}
	}
}
