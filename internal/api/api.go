package api

import (
	"fmt"
	"net/http"

	"support-desk-backend/internal/database"
	"support-desk-backend/internal/messaging"
	"support-desk-backend/internal/queue"
	"support-desk-backend/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
)

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	db                  *database.Database
	routeRegistrars     []RouteRegistrar
	handler             *websocket.Handler
	notifier            *websocket.Notifier
	bus                 messaging.Publisher
	metrics             *metrics
}

func NewAPIServer(listenAddr string, rqm *queue.RequestQueueManager, db *database.Database, handler *websocket.Handler, notifier *websocket.Notifier, bus messaging.Publisher, registrars ...RouteRegistrar) *APIServer {
	if bus == nil {
		bus = messaging.NopPublisher{}
	}
	return &APIServer{
		listenAddr:          listenAddr,
		requestQueueManager: rqm,
		db:                  db,
		handler:             handler,
		notifier:            notifier,
		bus:                 bus,
		routeRegistrars:     registrars,
		metrics:             newMetrics(prometheus.DefaultRegisterer, listenAddr, rqm),
	}
}

func (s *APIServer) Run() {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())

	fmt.Printf("Server listening on http://localhost%s\n", s.listenAddr)

	if err := http.ListenAndServe(s.listenAddr, s.metrics.instrument(mux)); err != nil {
		fmt.Printf("server stopped: %v\n", err)
	}
}

func (s *APIServer) Database() *database.Database {
	return s.db
}

func (s *APIServer) Handler() *websocket.Handler {
	return s.handler
}

func (s *APIServer) Notifier() *websocket.Notifier {
	return s.notifier
}

func (s *APIServer) Bus() messaging.Publisher {
	return s.bus
}
