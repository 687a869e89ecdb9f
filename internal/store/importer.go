package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ImportResult reports what a CSV bulk import did. Skipped rows keep their
// 1-based line number so the admin UI can point at the offending line.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

var csvColumns = []string{"title", "author", "price", "stock", "category", "description", "isbn", "coverImageUrl"}

// ImportBooksCSV reads rows of
// title,author,price,stock,category,description,isbn,coverImageUrl and
// inserts each valid row as a book. Rows missing title or price are skipped,
// not fatal; a malformed file is.
func ImportBooksCSV(ctx context.Context, db *sql.DB, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	col := make(map[string]int)
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"title", "price"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("csv missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	result := &ImportResult{}
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		line++

		title := field(record, "title")
		priceStr := field(record, "price")
		if title == "" || priceStr == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: missing title or price", line))
			continue
		}

		price, err := decimal.NewFromString(priceStr)
		if err != nil || price.IsNegative() {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: invalid price %q", line, priceStr))
			continue
		}

		stock := 0
		if s := field(record, "stock"); s != "" {
			stock, err = strconv.Atoi(s)
			if err != nil || stock < 0 {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: invalid stock %q", line, s))
				continue
			}
		}

		_, err = CreateBook(ctx, db, BookInput{
			Title:         title,
			Author:        field(record, "author"),
			Description:   field(record, "description"),
			ISBN:          field(record, "isbn"),
			Category:      field(record, "category"),
			CoverImageURL: field(record, "coverImageUrl"),
			Price:         price,
			Stock:         stock,
		})
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		result.Imported++
	}

	return result, nil
}
