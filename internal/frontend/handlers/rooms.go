package handlers

import (
	"net/http"

	"github.com/cory-johannsen/hilo/internal/gameserver"
)

func (s *Server) handleSubscribe(stream PushStream) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := stream.Serve(w, r, sessionID(r)); err != nil {
			s.respondError(w, r, err)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.svc.Stats()
	respondJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		gameserver.Stats
	}{"ok", stats})
}

func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.ListRooms())
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp, err := s.svc.CreateRoom(sessionID(r), gameserver.CreateRoomRequest{
		RoomName:   body.Get("room_name").String(),
		PlayerName: body.Get("player_name").String(),
		MaxRounds:  int(body.Get("max_rounds").Int()),
		Endless:    body.Get("endless").Bool(),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp, err := s.svc.JoinRoom(sessionID(r), body.Get("room_id").Int(), body.Get("player_name").String())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.LeaveRoom(sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.StartGame(sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitChoice(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp, err := s.svc.SubmitChoice(sessionID(r), int(body.Get("choice").Int()), int(body.Get("response_time").Int()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRoomInfo(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.RoomInfo(sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
