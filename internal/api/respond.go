package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/leafpress/go-bookstore/internal/database"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps store sentinel errors onto HTTP statuses. Anything
// unclassified is a 500 with the detail kept server-side.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrBookNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrReviewNotFound),
		errors.Is(err, database.ErrPromotionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrInsufficientStock),
		errors.Is(err, database.ErrPromotionInactive),
		errors.Is(err, database.ErrPromotionExpired),
		errors.Is(err, database.ErrPromotionMinNotMet),
		errors.Is(err, database.ErrOrderNotCancellable),
		errors.Is(err, database.ErrInvalidTransition):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrEmailTaken),
		errors.Is(err, database.ErrDuplicateReview),
		errors.Is(err, database.ErrPaymentAlreadyUsed):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrPaymentNotConfirmed):
		respondError(w, http.StatusPaymentRequired, err.Error())
	default:
		log.Printf("Internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func parsePagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}
