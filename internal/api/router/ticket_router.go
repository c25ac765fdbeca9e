package router

import (
	"net/http"

	"support-desk-backend/internal/api"
	"support-desk-backend/internal/api/endpoints"
	"support-desk-backend/internal/api/middleware"
	ticketservice "support-desk-backend/internal/service/ticket"
)

func TicketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		service := ticketservice.New(s.Database(), s.Bus())
		ticketEndpoints := endpoints.NewTicketEndpoints(service, s.Notifier(), prefix)

		mux.HandleFunc(prefix+"/tickets", s.MakeHTTPHandleFunc(ticketEndpoints.Tickets, middleware.ValidateAgentJWT))
		mux.HandleFunc(prefix+"/tickets/number/", s.MakeHTTPHandleFunc(ticketEndpoints.TicketByNumber, middleware.ValidateAgentJWT))
		mux.HandleFunc(prefix+"/tickets/", s.MakeHTTPHandleFunc(ticketEndpoints.TicketByID, middleware.ValidateAgentJWT))
	}
}
