package router

import (
	"net/http"

	"support-desk-backend/internal/api"
	"support-desk-backend/internal/api/endpoints"
	"support-desk-backend/internal/api/middleware"
	customerservice "support-desk-backend/internal/service/customer"
	ticketservice "support-desk-backend/internal/service/ticket"
	timelineservice "support-desk-backend/internal/service/timeline"
)

func CustomerRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		customers := customerservice.New(s.Database(), s.Bus())
		tickets := ticketservice.New(s.Database(), s.Bus())
		timeline := timelineservice.New(s.Database())
		customerEndpoints := endpoints.NewCustomerEndpoints(customers, tickets, timeline, prefix)

		mux.HandleFunc(prefix+"/customers", s.MakeHTTPHandleFunc(customerEndpoints.Customers, middleware.ValidateAgentJWT))
		mux.HandleFunc(prefix+"/customers/", s.MakeHTTPHandleFunc(customerEndpoints.CustomerByID, middleware.ValidateAgentJWT))
		mux.HandleFunc(prefix+"/timeline/recent", s.MakeHTTPHandleFunc(customerEndpoints.RecentTimeline, middleware.ValidateAgentJWT))
	}
}
