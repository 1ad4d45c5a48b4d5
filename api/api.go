package api

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/database"
)

// APIServer wraps the fiber application and its storage backend
type APIServer struct {
	app           *fiber.App
	listenAddress string
	store         database.Storage
}

// NewAPIServer creates a new API server bound to the given address
func NewAPIServer(listenAddress string, store database.Storage) *APIServer {
	return &APIServer{
		app:           fiber.New(),
		listenAddress: listenAddress,
		store:         store,
	}
}

// GetEngine returns the underlying fiber app
func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

// Run starts the HTTP server
func (s *APIServer) Run() error {
	log.Println("Starting API Server")
	log.Printf("Listening on %s", s.listenAddress)

	return s.app.Listen(s.listenAddress)
}
