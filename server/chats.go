package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/poiesic/ragline/chat"
)

type askBody struct {
	Question    string  `json:"question"`
	OnlyContext *bool   `json:"onlyContext"`
	TopK        int     `json:"topK"`
	TopP        float64 `json:"topP"`
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	convs, err := s.chats.ListConversations(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	out := make([]conversationDTO, len(convs))
	for i, c := range convs {
		out[i] = toConversationDTO(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	conv, err := s.chats.CreateConversation(r.Context(), r.URL.Query().Get("title"))
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, toConversationDTO(conv))
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	conv, err := s.chats.GetConversation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, toConversationDTO(conv))
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	if err := s.chats.DeleteConversation(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// askChat streams the answer as unnamed events, one per token, followed by a
// "done" event carrying the stored message. Failures after the stream has
// started are reported as an "error" event.
func (s *Server) askChat(w http.ResponseWriter, r *http.Request) {
	var body askBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id := mux.Vars(r)["id"]
	if _, err := s.chats.GetConversation(r.Context(), id); err != nil {
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}

	sse, err := newEventWriter(w)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	req := chat.AskRequest{
		ConversationID: id,
		Question:       body.Question,
		OnlyContext:    body.OnlyContext,
		TopK:           body.TopK,
		TopP:           body.TopP,
	}
	answer, err := s.chats.Ask(r.Context(), req, func(token string) error {
		if err := sse.Send("", token); err != nil {
			return chat.ErrConsumerGone
		}
		return nil
	})
	if err != nil {
		s.logger.Error("answer failed", "conversation_id", id, "err", err)
		sse.Send("error", err.Error())
		return
	}
	if answer == nil {
		return
	}
	sse.SendJSON("done", toMessageDTO(answer))
}
