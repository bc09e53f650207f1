// Package handlers maps HTTP routes onto game operations.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hilo/internal/config"
	"github.com/cory-johannsen/hilo/internal/gameserver"
)

// GameService is the set of game operations the routes call.
type GameService interface {
	ListRooms() gameserver.RoomListResponse
	CreateRoom(sid int64, req gameserver.CreateRoomRequest) (gameserver.RoomEvent, error)
	JoinRoom(sid, roomID int64, playerName string) (gameserver.RoomEvent, error)
	LeaveRoom(sid int64) (gameserver.RoomLeftResponse, error)
	StartGame(sid int64) (gameserver.QuestionEvent, error)
	SubmitChoice(sid int64, choice, responseTimeMs int) (gameserver.ChoiceResultResponse, error)
	RoomInfo(sid int64) (gameserver.RoomInfoResponse, error)
	Stats() gameserver.Stats
}

// PushStream serves a long-lived push subscription.
type PushStream interface {
	Serve(w http.ResponseWriter, r *http.Request, resume int64) error
}

// Server holds the route handlers.
type Server struct {
	svc    GameService
	sse    PushStream
	ws     PushStream
	logger *zap.Logger
}

// NewRouter builds the full HTTP handler: request logging, panic recovery, CORS
// and the game routes.
//
// Precondition: svc, sse, ws and logger must be non-nil.
// Postcondition: Returns a handler that answers every path, unknown ones with a JSON 404.
func NewRouter(cfg config.ServerConfig, svc GameService, sse, ws PushStream, logger *zap.Logger) http.Handler {
	s := &Server{svc: svc, sse: sse, ws: ws, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/subscribe", s.handleSubscribe(s.sse)).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleSubscribe(s.ws)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	rooms := r.PathPrefix("/rooms").Subrouter()
	rooms.HandleFunc("", s.handleListRooms).Methods(http.MethodGet)
	rooms.HandleFunc("/info", s.handleRoomInfo).Methods(http.MethodGet)
	rooms.HandleFunc("/create", s.handleCreateRoom).Methods(http.MethodPost)
	rooms.HandleFunc("/join", s.handleJoinRoom).Methods(http.MethodPost)
	rooms.HandleFunc("/leave", s.handleLeaveRoom).Methods(http.MethodPost)
	rooms.HandleFunc("/start", s.handleStartGame).Methods(http.MethodPost)
	rooms.HandleFunc("/choice", s.handleSubmitChoice).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(routeNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(routeNotFound)

	return requestLogger(logger)(recoverer(logger)(cors(cfg.AllowedOrigin)(r)))
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, map[string]string{
		"error": "Route not found: " + r.Method + " " + r.URL.Path,
	})
}

// respondJSON writes data as a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorBody is the payload of every failed request.
type errorBody struct {
	Error string          `json:"error"`
	Code  gameserver.Code `json:"code"`
}

// respondError maps err onto its code and HTTP status.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := gameserver.ErrorCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("request rejected",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}
	respondJSON(w, status, errorBody{Error: gameserver.ErrorMessage(err), Code: code})
}

func statusFor(code gameserver.Code) int {
	switch code {
	case gameserver.CodeNoSessionID:
		return http.StatusUnauthorized
	case gameserver.CodeInvalidInput:
		return http.StatusBadRequest
	case gameserver.CodeRoomNotFound:
		return http.StatusNotFound
	case gameserver.CodeNotHost:
		return http.StatusForbidden
	case gameserver.CodeRegistryFull:
		return http.StatusServiceUnavailable
	case gameserver.CodeAlreadyInRoom,
		gameserver.CodeRoomNotWaiting,
		gameserver.CodeRoomFull,
		gameserver.CodeGameAlreadyStarted,
		gameserver.CodeNotInRoom,
		gameserver.CodeNoActiveGame,
		gameserver.CodeAlreadyAnswered,
		gameserver.CodePlayerGameOver:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
