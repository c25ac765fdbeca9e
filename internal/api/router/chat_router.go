package router

import (
	"net/http"

	"support-desk-backend/internal/api"
	"support-desk-backend/internal/api/endpoints"
	"support-desk-backend/internal/api/middleware"
	chatservice "support-desk-backend/internal/service/chat"
	ticketservice "support-desk-backend/internal/service/ticket"
)

func ChatRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		chats := chatservice.New(s.Database())
		tickets := ticketservice.New(s.Database(), s.Bus())
		chatEndpoints := endpoints.NewChatEndpoints(chats, tickets, s.Handler(), s.Notifier(), prefix)

		mux.HandleFunc(prefix+"/chat/sessions", s.MakeHTTPHandleFunc(chatEndpoints.Sessions, middleware.ValidateAgentJWT))
		mux.HandleFunc(prefix+"/chat/sessions/", s.MakeHTTPHandleFunc(chatEndpoints.SessionByID, middleware.ValidateAgentJWT))
	}
}

// ChatWebsocketRoutes serves the realtime connections. The customer
// socket is anonymous; the agent socket validates its token during the
// upgrade handshake, so neither goes through the JWT middleware.
func ChatWebsocketRoutes() api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		chats := chatservice.New(s.Database())
		tickets := ticketservice.New(s.Database(), s.Bus())
		chatEndpoints := endpoints.NewChatEndpoints(chats, tickets, s.Handler(), s.Notifier(), "")

		mux.HandleFunc("/ws/chat", s.MakeHTTPHandleFunc(chatEndpoints.CustomerWebsocket))
		mux.HandleFunc("/ws/agent", s.MakeHTTPHandleFunc(chatEndpoints.AgentWebsocket))
	}
}
