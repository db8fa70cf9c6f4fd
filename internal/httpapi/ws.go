package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

type wsAsk struct {
	Question string `json:"question"`
}

type wsFrame struct {
	Token string `json:"token,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleChatWS streams assistant answers over a websocket. Each inbound
// frame is one question; the reply is a sequence of token frames closed by
// a done frame. Persistence and analytics behave exactly like the plain
// chat endpoint.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := cookieValue(r, sessionCookie)
	email := cookieValue(r, emailCookie)

	for {
		var ask wsAsk
		if err := conn.ReadJSON(&ask); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("websocket read failed", "error", err)
			}
			return
		}
		if strings.TrimSpace(ask.Question) == "" {
			if err := conn.WriteJSON(wsFrame{Error: "question is required"}); err != nil {
				return
			}
			continue
		}

		_, err := s.ask(r.Context(), r, sessionID, email, ask.Question, func(delta string) error {
			return conn.WriteJSON(wsFrame{Token: delta})
		})
		if err != nil {
			s.metrics.ComponentErrors.WithLabelValues("assistant").Inc()
			if err := conn.WriteJSON(wsFrame{Error: err.Error()}); err != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(wsFrame{Done: true}); err != nil {
			return
		}
	}
}
