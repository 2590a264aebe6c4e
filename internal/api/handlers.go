package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mrady9280/asfoor/internal/chat"
	"github.com/mrady9280/asfoor/internal/model"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return
	}

	resp, err := s.chat.ProcessChatTurn(r.Context(), &req)
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// writeChatError maps the error taxonomy onto HTTP statuses: client
// mistakes are 400, upstream model trouble is 502, the rest is 500.
func (s *Server) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		s.writeError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, model.ErrDeserialization):
		s.writeError(w, http.StatusBadRequest, "bad_thread_state", err.Error())
	case errors.Is(err, model.ErrUpstream):
		s.writeError(w, http.StatusBadGateway, "upstream", err.Error())
	default:
		s.logger.Error("chat turn failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal", "chat turn failed")
	}
}

// chatHistoryRequest is the body of POST /api/chat/history: the opaque
// thread state handed back by /api/chat, to be summarized and indexed
// under the personal document so later searches surface the conversation.
type chatHistoryRequest struct {
	ConversationID string `json:"conversationId"`
	ThreadState    string `json:"threadState"`
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	var req chatHistoryRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		s.writeError(w, http.StatusBadRequest, "validation", "conversationId must not be empty")
		return
	}

	messages, err := chat.DeserializeThread(req.ThreadState)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_thread_state", err.Error())
		return
	}
	if len(messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "validation", "threadState holds no messages")
		return
	}

	if err := s.ingest.IngestThread(r.Context(), req.ConversationID, messages); err != nil {
		s.logger.Error("thread ingestion failed", "conversation", req.ConversationID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal", "thread ingestion failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "indexed"})
}

// ingestRequest is the optional body of POST /api/ingest; omitted fields
// fall back to the configured document path and pattern.
type ingestRequest struct {
	Dir     string `json:"dir"`
	Pattern string `json:"pattern"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	req := ingestRequest{Dir: s.docPath, Pattern: s.ingestPattern}
	if r.ContentLength != 0 {
		var body ingestRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
			return
		}
		if body.Dir != "" {
			req.Dir = body.Dir
		}
		if body.Pattern != "" {
			req.Pattern = body.Pattern
		}
	}

	report, err := s.ingest.IngestAll(r.Context(), req.Dir, req.Pattern)
	if err != nil {
		s.logger.Error("ingestion failed", "dir", req.Dir, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal", "ingestion failed")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
