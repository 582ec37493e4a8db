package kds

import (
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type HandlerDeps struct {
	Registry  *Registry
	Cache     *SnapshotCache
	Hub       *Hub
	Processor *CommandProcessor
}

// Handler exposes the display-facing surface: the two WebSocket boards plus
// read-only snapshot endpoints for debugging and dashboards.
type Handler struct {
	deps     HandlerDeps
	config   *apt.Config
	logger   apt.Logger
	tlm      *telemetry.HTTP
	upgrader websocket.Upgrader
}

func NewHandler(deps HandlerDeps, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		deps:   deps,
		config: config,
		logger: logger,
		tlm:    telemetry.NewHTTP(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Displays live on the restaurant LAN and carry no browser
			// credentials; access control is out of scope here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.ServePrepBoard)
	r.Get("/ws/delivery", h.ServeDeliveryBoard)

	r.Route("/stations", func(r chi.Router) {
		r.Get("/", h.ListStations)
		r.Get("/{station}/board", h.GetBoard)
	})
}

func (h *Handler) ServePrepBoard(w http.ResponseWriter, r *http.Request) {
	h.serveBoard(w, r, BoardPrep)
}

func (h *Handler) ServeDeliveryBoard(w http.ResponseWriter, r *http.Request) {
	h.serveBoard(w, r, BoardDelivery)
}

// serveBoard upgrades the connection, registers it under the sentinel
// station and pumps frames until the display goes away. A freshly connected
// display immediately receives the (possibly empty) current snapshot, then
// picks its station with init_station.
func (h *Handler) serveBoard(w http.ResponseWriter, r *http.Request, board Board) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("websocket upgrade failed: %v", err)
		return
	}

	client := newWSClient(conn, h.logger)
	h.deps.Registry.Register(client, board)
	h.logger.Infof("client %s connected to %s board", client.ID(), board)

	go client.writePump()
	h.deps.Hub.SendSnapshot(client, board, StationNone)

	ctx := r.Context()
	client.readPump(func(data []byte) {
		act, err := DecodeAction(data)
		if err != nil {
			h.logger.Infof("client %s sent malformed action: %v", client.ID(), err)
			return
		}
		h.deps.Processor.Execute(ctx, client, board, act)
	})

	h.deps.Registry.Unregister(client)
	client.Close()
	h.logger.Infof("client %s disconnected from %s board", client.ID(), board)
}

func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListStations")
	defer finish()

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"stations": h.deps.Cache.Stations(),
	}, nil)
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBoard")
	defer finish()

	station := chi.URLParam(r, "station")
	if station == "" {
		apt.RespondError(w, http.StatusBadRequest, "Missing station name")
		return
	}

	board := BoardPrep
	if r.URL.Query().Get("board") == string(BoardDelivery) {
		board = BoardDelivery
	}

	snap := h.deps.Cache.Get(board, station)
	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"tickets": snap.Tickets,
		"summary": snap.Summary,
	}, nil)
}
