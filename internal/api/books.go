package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/leafpress/go-bookstore/internal/store"
)

func HandleListBooks(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, pageSize := parsePagination(r)
		filter := store.BookFilter{
			Category: r.URL.Query().Get("category"),
			Keyword:  r.URL.Query().Get("q"),
		}

		result, err := store.ListBooks(r.Context(), db, filter, page, pageSize)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}

func HandleGetBook(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid book ID")
			return
		}

		book, err := store.GetBook(r.Context(), db, id)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		book.Reviews, err = store.GetBookReviews(r.Context(), db, id)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, book)
	}
}

type bookRequest struct {
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Description   string  `json:"description"`
	ISBN          string  `json:"isbn"`
	Category      string  `json:"category"`
	CoverImageURL string  `json:"cover_image_url"`
	Price         float64 `json:"price"`
	Stock         int     `json:"stock"`
}

func (req *bookRequest) toInput() (store.BookInput, string) {
	if strings.TrimSpace(req.Title) == "" {
		return store.BookInput{}, "title is required"
	}
	if req.Price < 0 {
		return store.BookInput{}, "price must not be negative"
	}
	if req.Stock < 0 {
		return store.BookInput{}, "stock must not be negative"
	}

	return store.BookInput{
		Title:         req.Title,
		Author:        req.Author,
		Description:   req.Description,
		ISBN:          req.ISBN,
		Category:      req.Category,
		CoverImageURL: req.CoverImageURL,
		Price:         decimal.NewFromFloat(req.Price),
		Stock:         req.Stock,
	}, ""
}

func HandleCreateBook(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		input, problem := req.toInput()
		if problem != "" {
			respondError(w, http.StatusBadRequest, problem)
			return
		}

		book, err := store.CreateBook(r.Context(), a.DB, input)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		a.Audit(r, "book.create", "book", book.ID, book.Title)
		respondJSON(w, http.StatusCreated, book)
	}
}

func HandleUpdateBook(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid book ID")
			return
		}

		var req bookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		input, problem := req.toInput()
		if problem != "" {
			respondError(w, http.StatusBadRequest, problem)
			return
		}

		book, err := store.UpdateBook(r.Context(), a.DB, id, input)
		if err != nil {
			respondStoreError(w, err)
			return
		}

		a.Audit(r, "book.update", "book", book.ID, book.Title)
		respondJSON(w, http.StatusOK, book)
	}
}

func HandleDeleteBook(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid book ID")
			return
		}

		if err := store.DeleteBook(r.Context(), a.DB, id); err != nil {
			respondStoreError(w, err)
			return
		}

		a.Audit(r, "book.delete", "book", id, "")
		respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

const maxImportSize = 10 << 20 // 10 MiB

func HandleImportBooks(a *AdminContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxImportSize); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()

		result, err := store.ImportBooksCSV(r.Context(), a.DB, file)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		a.Audit(r, "book.import", "book", 0,
			"imported "+itoa(result.Imported)+", skipped "+itoa(result.Skipped))
		respondJSON(w, http.StatusOK, result)
	}
}
