// Package assistant implements the shopping assistant: a retrieval-light
// chat endpoint that pulls a handful of catalog rows by keyword match and
// forwards them, with the conversation history, to a hosted LLM.
package assistant

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leafpress/go-bookstore/internal/models"
	"github.com/leafpress/go-bookstore/internal/store"
)

const maxContextBooks = 5

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Service struct {
	db     *sql.DB
	client *Client
}

func NewService(db *sql.DB, client *Client) *Service {
	return &Service{db: db, client: client}
}

// Chat retrieves catalog context for the user's message and asks the LLM for
// a reply. History is passed through as-is; the catalog snapshot lives in the
// system prompt so it never pollutes the visible conversation.
func (s *Service) Chat(ctx context.Context, message string, history []Message) (string, error) {
	books, err := s.retrieve(ctx, message)
	if err != nil {
		return "", fmt.Errorf("retrieve catalog context: %w", err)
	}

	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: message})

	return s.client.Complete(ctx, buildSystemPrompt(books), messages)
}

// retrieve keyword-matches the whole message first, then falls back to its
// longer words until enough books are collected.
func (s *Service) retrieve(ctx context.Context, message string) ([]models.Book, error) {
	books, err := store.SearchBooks(ctx, s.db, strings.TrimSpace(message), maxContextBooks)
	if err != nil {
		return nil, err
	}
	if len(books) >= maxContextBooks {
		return books, nil
	}

	seen := make(map[int64]bool, len(books))
	for _, b := range books {
		seen[b.ID] = true
	}

	for _, word := range strings.Fields(message) {
		word = strings.Trim(word, ".,!?\"'")
		if len(word) < 4 {
			continue
		}

		matches, err := store.SearchBooks(ctx, s.db, word, maxContextBooks)
		if err != nil {
			return nil, err
		}
		for _, b := range matches {
			if seen[b.ID] {
				continue
			}
			seen[b.ID] = true
			books = append(books, b)
			if len(books) >= maxContextBooks {
				return books, nil
			}
		}
	}

	return books, nil
}

func buildSystemPrompt(books []models.Book) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant for an online bookstore. ")
	sb.WriteString("Answer questions about books, recommend titles, and help customers shop. ")
	sb.WriteString("Only recommend books from the catalog excerpt below. ")
	sb.WriteString("If nothing fits, say so rather than inventing titles.\n")

	if len(books) == 0 {
		sb.WriteString("\nNo catalog entries matched the customer's message.\n")
		return sb.String()
	}

	sb.WriteString("\nCatalog excerpt:\n")
	for _, b := range books {
		fmt.Fprintf(&sb, "- %q by %s: $%s, category %s, rating %s (%d reviews), %d in stock\n",
			b.Title, b.Author, b.Price.StringFixed(2), b.Category,
			b.Rating.StringFixed(1), b.NumReviews, b.Stock)
	}

	return sb.String()
}
