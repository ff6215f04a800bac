package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"

	apperrors "github.com/corvino/graphtalk/internal/errors"
	"github.com/corvino/graphtalk/internal/protocol"
)

// requireGraph rejects empty room keys and keys with no matching graph.
func (s *Server) requireGraph(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "roomKey")
		if strings.TrimSpace(key) == "" {
			s.writeError(w, apperrors.ErrInvalidKey)
			return
		}
		ok, err := s.graphs.Exists(r.Context(), key)
		if err != nil {
			s.log.Error("graph lookup failed", zap.String("room", key), zap.Error(err))
			s.writeError(w, err)
			return
		}
		if !ok {
			s.writeError(w, apperrors.ErrGraphNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleWS handles GET /api/chat/{roomKey}/ws?identity=&displayName=.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		s.writeError(w, apperrors.ErrIdentityRequired)
		return
	}
	ServeWS(s.hub, w, r, chi.URLParam(r, "roomKey"), identity, r.URL.Query().Get("displayName"), s.log)
}

// handleHistory handles GET /api/chat/{roomKey}/history?limit=&offset=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		s.writeError(w, err)
		return
	}

	page, err := s.hub.History(r.Context(), chi.URLParam(r, "roomKey"), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// handleInfo handles GET /api/chat/{roomKey}/info.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.hub.Info(r.Context(), chi.URLParam(r, "roomKey"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleSend handles POST /api/chat/{roomKey}/send.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req protocol.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.New(apperrors.KindInvalidMessage, apperrors.ErrInvalidFormat.Message, err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, sendValidationError(err))
		return
	}

	msg, err := s.hub.Send(r.Context(), chi.URLParam(r, "roomKey"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, protocol.SendResponse{Success: true, MessageID: msg.ID})
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.started)
	resp := protocol.HealthResponse{
		Status:     "ok",
		Uptime:     uptime.Round(time.Second).String(),
		UptimeSec:  uptime.Seconds(),
		Rooms:      s.hub.RoomCount(),
		Goroutines: runtime.NumGoroutine(),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfo(); err == nil {
			resp.RSSBytes = mem.RSS
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleRooms handles GET /api/rooms.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, protocol.RoomList{Rooms: s.hub.ListRooms(r.Context())})
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.New(apperrors.KindInvalidMessage, "invalid "+name+" parameter", err)
	}
	return n, nil
}

func sendValidationError(err error) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		switch fields[0].Field() {
		case "Identity":
			return apperrors.ErrIdentityRequired
		case "Content":
			return apperrors.ErrContentRequired
		}
	}
	return apperrors.New(apperrors.KindInvalidMessage, apperrors.ErrInvalidFormat.Message, err)
}

func statusFor(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindInvalidKey, apperrors.KindInvalidMessage:
		return http.StatusBadRequest
	case apperrors.KindGraphNotFound:
		return http.StatusNotFound
	case apperrors.KindRoomFull:
		return http.StatusConflict
	case apperrors.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("write response failed", zap.Int("status", status), zap.Error(err))
	}
}

// writeError maps err to a status. Server-side failures keep a generic
// error field and carry the detail in message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.writeJSON(w, status, protocol.ErrorResponse{Error: "internal server error", Message: err.Error()})
		return
	}
	s.writeJSON(w, status, protocol.ErrorResponse{Error: apperrors.MessageOf(err)})
}
