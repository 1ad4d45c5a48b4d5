package admin

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/utils/response"
)

// ListAuditLogs returns the admin action audit trail, newest first
func (h *AdminHandler) ListAuditLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	query := h.db.Model(&model.AdminAuditLog{})
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if resource := c.Query("resource"); resource != "" {
		query = query.Where("resource = ?", resource)
	}
	if adminID := c.Query("admin_id"); adminID != "" {
		query = query.Where("admin_id = ?", adminID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count audit logs")
	}

	pagination := response.CalculatePagination(page, limit, total)

	var logs []model.AdminAuditLog
	err := query.Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset((pagination.CurrentPage - 1) * pagination.PerPage).
		Find(&logs).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list audit logs")
	}

	return response.Paginated(c, logs, pagination)
}

// ListCronLogs returns recent scheduled job runs, newest first
func (h *AdminHandler) ListCronLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	query := h.db.Model(&model.CronJobLog{})
	if name := c.Query("job"); name != "" {
		query = query.Where("job_name = ?", name)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count job logs")
	}

	pagination := response.CalculatePagination(page, limit, total)

	var logs []model.CronJobLog
	err := query.Order("started_at DESC").
		Limit(pagination.PerPage).
		Offset((pagination.CurrentPage - 1) * pagination.PerPage).
		Find(&logs).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list job logs")
	}

	return response.Paginated(c, logs, pagination)
}
