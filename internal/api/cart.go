package api

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/leafpress/go-bookstore/internal/models"
	"github.com/leafpress/go-bookstore/internal/store"
)

func HandleGetCart(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := store.GetCart(r.Context(), db, claimsFrom(r).UserID)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
	}
}

func HandleReplaceCart(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Items []models.CartItem `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := store.ReplaceCart(r.Context(), db, claimsFrom(r).UserID, req.Items); err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{"items": req.Items})
	}
}

func HandleMergeCart(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Items []models.CartItem `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		merged, err := store.MergeCart(r.Context(), db, claimsFrom(r).UserID, req.Items)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{"items": merged})
	}
}

func HandleGetWishlist(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := store.GetWishlist(r.Context(), db, claimsFrom(r).UserID)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
	}
}

func HandleAddToWishlist(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BookID int64 `json:"book_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := store.AddToWishlist(r.Context(), db, claimsFrom(r).UserID, req.BookID); err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, map[string]string{"status": "added"})
	}
}

func HandleRemoveFromWishlist(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID, err := pathID(r, "bookID")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid book ID")
			return
		}

		if err := store.RemoveFromWishlist(r.Context(), db, claimsFrom(r).UserID, bookID); err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	}
}
