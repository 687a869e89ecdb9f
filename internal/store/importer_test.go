package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These cases never reach the database: they exercise header validation and
// row skipping, which both happen before any insert.

func TestImportBooksCSVMissingRequiredColumn(t *testing.T) {
	csvData := "author,stock\nSomeone,5\n"

	_, err := ImportBooksCSV(context.Background(), nil, strings.NewReader(csvData))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")
}

func TestImportBooksCSVSkipsRowsMissingTitleOrPrice(t *testing.T) {
	csvData := strings.Join([]string{
		"title,author,price,stock,category,description,isbn,coverImageUrl",
		",Anonymous,9.99,3,fiction,,,",
		"The Missing Price,Someone,,3,fiction,,,",
		"Bad Price,Someone,not-a-number,3,fiction,,,",
		"Bad Stock,Someone,9.99,minus,fiction,,,",
	}, "\n") + "\n"

	result, err := ImportBooksCSV(context.Background(), nil, strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 4, result.Skipped)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "line 2")
	assert.Contains(t, result.Errors[3], "line 5")
}

func TestImportBooksCSVMalformedHeader(t *testing.T) {
	_, err := ImportBooksCSV(context.Background(), nil, strings.NewReader(""))
	assert.Error(t, err)
}
