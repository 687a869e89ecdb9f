package main

import (
	"log"
	"net/http"

	"github.com/leafpress/go-bookstore/internal/api"
	"github.com/leafpress/go-bookstore/internal/assistant"
	"github.com/leafpress/go-bookstore/internal/config"
	"github.com/leafpress/go-bookstore/internal/database"
	"github.com/leafpress/go-bookstore/internal/mailer"
	"github.com/leafpress/go-bookstore/internal/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database successfully")

	payments := payment.NewClient(cfg.Payment.BaseURL, cfg.Payment.SecretKey)
	mail := mailer.New(cfg.SMTP)
	chat := assistant.NewService(db, assistant.NewClient(
		cfg.Assistant.BaseURL, cfg.Assistant.APIKey, cfg.Assistant.Model, cfg.Assistant.MaxTokens))
	admin := &api.AdminContext{DB: db, AuditRetention: cfg.Audit.Retention}

	auth := func(h http.HandlerFunc) http.HandlerFunc {
		return api.Authenticate(cfg.Auth.JWTSecret, h)
	}
	adminOnly := func(h http.HandlerFunc) http.HandlerFunc {
		return auth(api.RequireAdmin(h))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", api.HandleRegister(db))
	mux.HandleFunc("POST /api/auth/login", api.HandleLogin(db, cfg.Auth))
	mux.HandleFunc("POST /api/auth/password", auth(api.HandleChangePassword(db)))
	mux.HandleFunc("GET /api/me", auth(api.HandleProfile(db)))
	mux.HandleFunc("POST /api/me/addresses", auth(api.HandleAddAddress(db)))
	mux.HandleFunc("DELETE /api/me/addresses/{id}", auth(api.HandleDeleteAddress(db)))

	mux.HandleFunc("GET /api/books", api.HandleListBooks(db))
	mux.HandleFunc("GET /api/books/{id}", api.HandleGetBook(db))
	mux.HandleFunc("POST /api/books/{id}/reviews", auth(api.HandleAddReview(db)))
	mux.HandleFunc("PUT /api/books/{id}/reviews/{reviewID}", auth(api.HandleUpdateReview(db)))
	mux.HandleFunc("DELETE /api/books/{id}/reviews/{reviewID}", auth(api.HandleDeleteReview(db)))
	mux.HandleFunc("POST /api/books/{id}/reviews/{reviewID}/replies", auth(api.HandleAddReply(db)))

	mux.HandleFunc("GET /api/cart", auth(api.HandleGetCart(db)))
	mux.HandleFunc("PUT /api/cart", auth(api.HandleReplaceCart(db)))
	mux.HandleFunc("POST /api/cart/merge", auth(api.HandleMergeCart(db)))
	mux.HandleFunc("GET /api/wishlist", auth(api.HandleGetWishlist(db)))
	mux.HandleFunc("POST /api/wishlist", auth(api.HandleAddToWishlist(db)))
	mux.HandleFunc("DELETE /api/wishlist/{bookID}", auth(api.HandleRemoveFromWishlist(db)))

	mux.HandleFunc("POST /api/checkout", auth(api.HandleCheckout(db, payments, mail)))
	mux.HandleFunc("GET /api/orders", auth(api.HandleListOrders(db)))
	mux.HandleFunc("GET /api/orders/{id}", auth(api.HandleGetOrder(db)))
	mux.HandleFunc("GET /api/orders/{id}/invoice", auth(api.HandleOrderInvoice(db)))
	mux.HandleFunc("POST /api/orders/{id}/cancel", auth(api.HandleCancelOrder(db, mail)))

	mux.HandleFunc("POST /api/assistant/chat", auth(api.HandleAssistantChat(chat)))
	mux.HandleFunc("POST /api/payments/webhook", api.HandlePaymentWebhook(cfg.Payment.WebhookSecret))

	mux.HandleFunc("POST /api/admin/books", adminOnly(api.HandleCreateBook(admin)))
	mux.HandleFunc("PUT /api/admin/books/{id}", adminOnly(api.HandleUpdateBook(admin)))
	mux.HandleFunc("DELETE /api/admin/books/{id}", adminOnly(api.HandleDeleteBook(admin)))
	mux.HandleFunc("POST /api/admin/books/import", adminOnly(api.HandleImportBooks(admin)))

	mux.HandleFunc("GET /api/admin/promotions", adminOnly(api.HandleListPromotions(admin)))
	mux.HandleFunc("POST /api/admin/promotions", adminOnly(api.HandleCreatePromotion(admin)))
	mux.HandleFunc("PUT /api/admin/promotions/{id}", adminOnly(api.HandleUpdatePromotion(admin)))
	mux.HandleFunc("DELETE /api/admin/promotions/{id}", adminOnly(api.HandleDeletePromotion(admin)))

	mux.HandleFunc("GET /api/admin/orders", adminOnly(api.HandleAdminListOrders(admin)))
	mux.HandleFunc("PUT /api/admin/orders/{id}/status", adminOnly(api.HandleUpdateOrderStatus(admin)))

	mux.HandleFunc("GET /api/admin/reports/summary", adminOnly(api.HandleSalesSummary(admin)))
	mux.HandleFunc("GET /api/admin/reports/daily", adminOnly(api.HandleDailySales(admin)))
	mux.HandleFunc("GET /api/admin/reports/categories", adminOnly(api.HandleCategorySales(admin)))
	mux.HandleFunc("GET /api/admin/audit-logs", adminOnly(api.HandleListAuditLogs(admin)))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
