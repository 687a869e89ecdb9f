package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/leafpress/go-bookstore/internal/assistant"
)

const maxHistoryMessages = 20

func HandleAssistantChat(svc *assistant.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string              `json:"message"`
			History []assistant.Message `json:"history"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			respondError(w, http.StatusBadRequest, "message is required")
			return
		}

		history := req.History
		if len(history) > maxHistoryMessages {
			history = history[len(history)-maxHistoryMessages:]
		}
		for _, m := range history {
			if m.Role != "user" && m.Role != "assistant" {
				respondError(w, http.StatusBadRequest, "history roles must be user or assistant")
				return
			}
		}

		reply, err := svc.Chat(r.Context(), req.Message, history)
		if err != nil {
			log.Printf("Assistant chat: %v", err)
			respondError(w, http.StatusBadGateway, "the assistant is unavailable right now, please try again")
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
	}
}
