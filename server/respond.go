package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/poiesic/ragline/chat"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrEmptyQuestion),
		errors.Is(err, chat.ErrConversationRequired),
		errors.Is(err, ingestion.ErrFileRead),
		errors.Is(err, ingestion.ErrExtraction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type documentDTO struct {
	ID           core.ID   `json:"id"`
	Filename     string    `json:"filename"`
	ContentHash  string    `json:"contentHash"`
	ChunkCount   int       `json:"chunkCount"`
	DocumentType string    `json:"documentType"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toDocumentDTOs(docs []*core.Document) []documentDTO {
	out := make([]documentDTO, len(docs))
	for i, d := range docs {
		out[i] = documentDTO{
			ID:           d.Id,
			Filename:     d.Filename,
			ContentHash:  d.ContentHash,
			ChunkCount:   d.ChunkCount,
			DocumentType: d.DocumentType,
			CreatedAt:    d.CreatedAt,
		}
	}
	return out
}

type messageDTO struct {
	ID        string    `json:"id"`
	Role      core.Role `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func toMessageDTO(m *core.Message) messageDTO {
	return messageDTO{ID: m.Id, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}

type conversationDTO struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	CreatedAt time.Time    `json:"createdAt"`
	Messages  []messageDTO `json:"messages,omitempty"`
}

func toConversationDTO(c *core.Conversation) conversationDTO {
	dto := conversationDTO{ID: c.Id, Title: c.Title, CreatedAt: c.CreatedAt}
	for _, m := range c.Messages {
		dto.Messages = append(dto.Messages, toMessageDTO(m))
	}
	return dto
}
