package middleware

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/model"
	"gorm.io/gorm"
)

// AdminAuditLog records an audit trail entry for admin actions such as
// refunds, role changes and deletions. The entry is written after the
// handler runs so the response outcome doesn't block on it.
func AdminAuditLog(db *gorm.DB, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, ok := GetUser(c)
		if !ok || admin == nil {
			return c.Next() // Nothing to attribute the action to
		}

		var resourceID uint
		if id := c.Params("id"); id != "" {
			if parsedID, err := strconv.ParseUint(id, 10, 32); err == nil {
				resourceID = uint(parsedID)
			}
		}

		var newValue interface{}
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut || c.Method() == fiber.MethodPatch {
			body := c.Body()
			if len(body) > 0 {
				json.Unmarshal(body, &newValue)
			}
		}

		// Capture request details before Next; the fiber context is recycled
		// once the handler chain returns.
		auditLog := model.AdminAuditLog{
			AdminID:     admin.ID,
			Action:      action,
			Resource:    resource,
			ResourceID:  resourceID,
			IPAddress:   c.IP(),
			UserAgent:   c.Get("User-Agent"),
			Description: c.Method() + " " + c.Path(),
		}

		err := c.Next()

		go func() {
			newValueJSON, _ := json.Marshal(newValue)
			auditLog.NewValue = string(newValueJSON)
			db.Create(&auditLog)
		}()

		return err
	}
}
