package ws

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"aethermeet/auth"
	"aethermeet/domain"
	"aethermeet/errors"
	"aethermeet/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the outer surface of the engine: JSON endpoints for create and
// join, a websocket stream for everything that happens inside a room.
type Server struct {
	roomService          services.IRoomService
	credentials          services.ICredentialService
	connectionBufferSize int
	log                  *slog.Logger
}

func NewServer(log *slog.Logger, roomService services.IRoomService,
	credentials services.ICredentialService, connectionBufferSize int) *Server {
	return &Server{
		roomService:          roomService,
		credentials:          credentials,
		connectionBufferSize: connectionBufferSize,
		log:                  log,
	}
}

// Routes mounts all handlers on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("POST /api/rooms/join", s.handleJoinRoom)
	mux.HandleFunc("GET /api/rooms/{code}/messages", s.handleMessages)
	mux.HandleFunc("GET /api/rooms/{code}/roster", s.handleRoster)
	mux.HandleFunc("GET /ws/{code}", s.handleSocket)
	return mux
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req auth.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := s.roomService.CreateRoom(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"code":  created.Code,
		"token": created.Token,
	})
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req auth.JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	decision, token, err := s.roomService.Join(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"decision": string(decision),
		"token":    token,
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	username, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err := s.roomService.Authorize(r.PathValue("code"), username); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	messages, next, err := s.roomService.Messages(r.PathValue("code"), cursor)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"cursor":   next,
	})
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	username, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err := s.roomService.Authorize(r.PathValue("code"), username); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"members": s.roomService.Roster(r.PathValue("code")),
	})
}

// handleSocket upgrades the connection and runs the session: a write loop
// pushing room events, a read loop applying operation frames.
//
// A dropped connection only unregisters the sink. Room membership is
// untouched: an explicit leave frame is the only way out of a room.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	username, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	code := r.PathValue("code")

	// A token only proves a username. The stream is for the room's own
	// members and pending requesters, nobody else.
	if err := s.roomService.Authorize(code, username); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sink := NewConnSink(s.connectionBufferSize)
	s.roomService.Subscribe(username, code, sink)
	defer s.roomService.Unsubscribe(username, code)

	// Gorilla allows a single concurrent writer, so both loops share one
	// locked writer.
	writer := &connWriter{conn: conn}
	done := make(chan struct{})
	go s.writeLoop(writer, sink, done)
	s.readLoop(r, conn, writer, username, code)
	close(done)
	s.log.Info(fmt.Sprintf("Client %s disconnected from %s", username, code))
}

type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) writeLoop(writer *connWriter, sink *ConnSink, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case evt := <-sink.Events:
			frame, err := toEventFrame(evt)
			if err != nil {
				s.log.Error("failed to encode event", "event", evt.Name(), "error", err)
				continue
			}
			if err := writer.write(frame); err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(r *http.Request, conn *websocket.Conn, writer *connWriter, username, code string) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame OpFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			_ = writer.write(toErrorFrame(err))
			continue
		}

		if err := s.applyFrame(r, frame, username, code); err != nil {
			_ = writer.write(toErrorFrame(err))
			continue
		}
		_ = writer.write(toAckFrame(frame.Type))

		if frame.Type == frameLeave {
			return
		}
	}
}

func (s *Server) applyFrame(r *http.Request, frame OpFrame, username, code string) error {
	ctx := r.Context()
	switch frame.Type {
	case framePostMessage:
		return s.roomService.PostMessage(ctx, code, username, frame.Content, frame.Media)
	case frameVote:
		return s.roomService.CastVote(ctx, code, frame.Target, username, domain.Vote(frame.Vote))
	case frameResolve:
		return s.roomService.Resolve(ctx, code, frame.Target, username, frame.Admit)
	case frameLeave:
		return s.roomService.Leave(ctx, code, username, domain.LeaveMode(frame.Mode))
	case frameKick:
		return s.roomService.Kick(ctx, code, frame.Target, username)
	case frameModerate:
		return s.roomService.Moderate(ctx, code, frame.Target, username,
			domain.ModerationAction(frame.Action), frame.Reason, frame.DurationMinutes)
	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
}

// authenticate accepts the session token as a Bearer header or, for
// websocket clients, a query parameter.
func (s *Server) authenticate(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return "", errors.ErrInvalidCredentials
	}
	return s.credentials.Authenticate(token)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps engine sentinels to HTTP statuses. Unknown errors are
// treated as client input problems only when validation produced them.
func statusFor(err error) int {
	switch {
	case goerrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case goerrors.Is(err, errors.ErrUnauthorized),
		goerrors.Is(err, errors.ErrInvalidCredentials):
		return http.StatusForbidden
	case goerrors.Is(err, errors.ErrAlreadyMember),
		goerrors.Is(err, errors.ErrAlreadyPending),
		goerrors.Is(err, errors.ErrRoomExists):
		return http.StatusConflict
	case goerrors.Is(err, errors.ErrRoomTerminal):
		return http.StatusGone
	case goerrors.Is(err, errors.ErrRoomFull):
		return http.StatusConflict
	case goerrors.Is(err, errors.ErrPersistenceFailed),
		goerrors.Is(err, errors.ErrInternal):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
