package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/utils/cache"
	"github.com/learnhub/lms-api/utils/response"
	"gorm.io/gorm"
)

// HealthHandler reports service and dependency health
type HealthHandler struct {
	db    *gorm.DB
	redis *cache.RedisCache
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB, redis *cache.RedisCache) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Check reports liveness plus database and cache reachability
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}

	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
	} else {
		status["database"] = "ok"
	}

	if h.redis != nil {
		if _, err := h.redis.Exists(c.Context(), "health:probe"); err != nil {
			status["status"] = "degraded"
			status["cache"] = "unreachable"
		} else {
			status["cache"] = "ok"
		}
	}

	return response.Success(c, status)
}
