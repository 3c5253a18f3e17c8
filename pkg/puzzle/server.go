package puzzle

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/cluebot/go-cluebot/pkg/hub"
)

// RobotStatus is what the dashboard shows about the robot side.
type RobotStatus struct {
	Speaking        bool   `json:"speaking"`
	Listening       bool   `json:"listening"`
	Turn            int    `json:"turn"`
	LastUserMessage string `json:"last_user_message"`
	LastBotMessage  string `json:"last_bot_message"`
	Strategy        string `json:"strategy"`
}

// inboundEnvelope wraps messages from the browser.
type inboundEnvelope struct {
	Type  string `json:"type"`
	State *State `json:"state"`
}

// Server hosts the crossword UI and its websocket state channel.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	catalog Catalog

	// Sync holds the latest grid snapshot published by the UI.
	Sync *Sync

	puzzleHub *hub.Hub

	statusMu sync.RWMutex
	status   RobotStatus
}

// NewServer creates the puzzle server on the given port.
func NewServer(port string, catalog Catalog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		port:      port,
		logger:    logger.With("component", "puzzle.server"),
		catalog:   catalog,
		puzzleHub: hub.New("puzzle", logger),
	}
	s.Sync = NewSync(s.requestState)
	s.puzzleHub.OnInbound = s.handleInbound

	app := fiber.New(fiber.Config{
		AppName:               "Cluebot Puzzle",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static crossword UI
	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/clues", s.handleClues)
	api.Get("/state", s.handleState)
	api.Get("/status", s.handleStatus)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/puzzle", websocket.New(s.handlePuzzleWS))

	s.app = app
	return s
}

// Start runs the server, blocking.
func (s *Server) Start() error {
	go s.puzzleHub.Run()
	s.logger.Info("puzzle server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("puzzle server failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(2 * time.Second)
}

// requestState asks connected UIs to publish their current grid.
func (s *Server) requestState() {
	s.puzzleHub.BroadcastJSON(map[string]string{"type": "request_state"})
}

// handleInbound processes messages from the browser.
func (s *Server) handleInbound(data []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Debug("bad inbound message", "error", err)
		return
	}
	if env.Type == "state" && env.State != nil {
		s.Sync.Publish(*env.State)
	}
}

// UpdateStatus mutates the robot status and broadcasts it to the UI.
func (s *Server) UpdateStatus(update func(*RobotStatus)) {
	s.statusMu.Lock()
	update(&s.status)
	status := s.status
	s.statusMu.Unlock()

	s.puzzleHub.BroadcastJSON(map[string]interface{}{
		"type":   "status",
		"status": status,
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"clients": s.puzzleHub.ClientCount(),
	})
}

func (s *Server) handleClues(c *fiber.Ctx) error {
	return c.JSON(s.catalog)
}

func (s *Server) handleState(c *fiber.Ctx) error {
	state, ok := s.Sync.Latest()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no state published yet",
		})
	}
	return c.JSON(state)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	return c.JSON(status)
}

func (s *Server) handlePuzzleWS(conn *websocket.Conn) {
	client := hub.NewClient(s.puzzleHub, conn)
	client.Run()
}
