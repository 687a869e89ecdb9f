package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/leafpress/go-bookstore/internal/store"
)

func HandleAddReview(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID, err := pathID(r, "id")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid book ID")
			return
		}

		var req struct {
			Rating  int    `json:"rating"`
			Comment string `json:"comment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Rating < 1 || req.Rating > 5 {
			respondError(w, http.StatusBadRequest, "rating must be between 1 and 5")
			return
		}

		review, err := store.AddReview(r.Context(), db, bookID, claimsFrom(r).UserID, req.Rating, req.Comment)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, review)
	}
}

func HandleUpdateReview(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reviewID, err := pathID(r, "reviewID")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid review ID")
			return
		}

		var req struct {
			Rating  int    `json:"rating"`
			Comment string `json:"comment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Rating < 1 || req.Rating > 5 {
			respondError(w, http.StatusBadRequest, "rating must be between 1 and 5")
			return
		}

		review, err := store.UpdateReview(r.Context(), db, reviewID, claimsFrom(r).UserID, req.Rating, req.Comment)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, review)
	}
}

func HandleDeleteReview(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reviewID, err := pathID(r, "reviewID")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid review ID")
			return
		}

		if err := store.DeleteReview(r.Context(), db, reviewID, claimsFrom(r).UserID); err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func HandleAddReply(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, err := pathID(r, "reviewID")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid review ID")
			return
		}

		var req struct {
			Comment string `json:"comment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.Comment) == "" {
			respondError(w, http.StatusBadRequest, "comment is required")
			return
		}

		reply, err := store.AddReply(r.Context(), db, parentID, claimsFrom(r).UserID, req.Comment)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, reply)
	}
}
