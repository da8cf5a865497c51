package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kibitz-games/kibitz/internal/event"
	apperrors "github.com/kibitz-games/kibitz/internal/platform/errors"
	"github.com/kibitz-games/kibitz/internal/room"
)

// eventsResponse is the JSON body of the polling endpoint.
type eventsResponse struct {
	SessionID string        `json:"session_id"`
	Events    []event.Event `json:"events"`
	// Trimmed reports that the buffer no longer reaches back to the
	// requested sequence; callers should refetch state via snapshot.
	Trimmed bool   `json:"trimmed,omitempty"`
	LastSeq uint64 `json:"last_seq"`
}

// handleEvents returns buffered events with Seq > after_seq as JSON.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	afterSeq, err := parseAfterSeq(r)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidSequence, err.Error()))
		return
	}

	// Resolve through the registry so a hibernated room wakes and missing
	// sessions 404 instead of returning an empty list.
	if _, err := s.cfg.Rooms.Get(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}

	events, trimmed := s.cfg.Buffer.EventsSince(sessionID, afterSeq)
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		SessionID: sessionID,
		Events:    events,
		Trimmed:   trimmed,
		LastSeq:   s.cfg.Buffer.LastSeq(sessionID),
	})
}

// handleStream pushes a snapshot, the backlog, and then live events over
// Server-Sent Events until the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.New(apperrors.CodeInternal, "streaming is not supported"))
		return
	}

	res, err := s.attach(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rm, attach := res.rm, res.attach
	defer rm.Detach(attach.Observer)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, snapshotEvent(attach))
	for _, evt := range attach.Backlog {
		writeSSE(w, evt)
	}
	flusher.Flush()

	for {
		select {
		case evt, open := <-attach.Observer.Events():
			if !open {
				return
			}
			writeSSE(w, evt)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleWS pushes the same snapshot-backlog-live sequence over a WebSocket.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	res, err := s.attach(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rm, attach := res.rm, res.attach
	defer rm.Detach(attach.Observer)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket accept")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	// Spectators only receive; reads just surface client disconnects.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	if err := wsjson.Write(ctx, conn, snapshotEvent(attach)); err != nil {
		return
	}
	for _, evt := range attach.Backlog {
		if err := wsjson.Write(ctx, conn, evt); err != nil {
			return
		}
	}

	for {
		select {
		case evt, open := <-attach.Observer.Events():
			if !open {
				conn.Close(websocket.StatusGoingAway, "room closed")
				return
			}
			if err := wsjson.Write(ctx, conn, evt); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

type attachment struct {
	rm     *room.Room
	attach room.AttachResult
}

func (s *Server) attach(r *http.Request) (attachment, error) {
	afterSeq, err := parseAfterSeq(r)
	if err != nil {
		return attachment{}, apperrors.New(apperrors.CodeInvalidSequence, err.Error())
	}
	rm, err := s.cfg.Rooms.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		return attachment{}, err
	}
	attach, err := rm.Attach(r.Context(), afterSeq, 0)
	if err != nil {
		return attachment{}, err
	}
	return attachment{rm: rm, attach: attach}, nil
}

// snapshotEvent wraps the attach snapshot as a synthetic event so stream
// clients handle one envelope shape. Its Seq equals the snapshot's last
// emitted sequence; clients resume live delivery after it.
func snapshotEvent(attach room.AttachResult) event.Event {
	payload, _ := json.Marshal(attach.Snapshot)
	return event.Event{
		SessionID: attach.Snapshot.SessionID,
		Seq:       attach.Snapshot.LastSeq,
		Type:      event.TypeSnapshot,
		Payload:   payload,
	}
}

func parseAfterSeq(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("after_seq")
	if raw == "" {
		return 0, nil
	}
	afterSeq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("after_seq must be a non-negative integer")
	}
	return afterSeq, nil
}

func writeSSE(w http.ResponseWriter, evt event.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Type, data)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	writeJSON(w, statusFor(code), errorBody{Code: string(code), Message: err.Error()})
}

func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeSessionNotFound, apperrors.CodeReplayNotFound, apperrors.CodeNotFound, apperrors.CodeUnknownGame:
		return http.StatusNotFound
	case apperrors.CodeSessionExpired:
		return http.StatusGone
	case apperrors.CodeInvalidSequence, apperrors.CodeInvalidMove:
		return http.StatusBadRequest
	case apperrors.CodeInternal, apperrors.CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}
