package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mweidner/JadeFrame/app/models"
)

// jsonError writes the stable error envelope: a machine-readable code plus a
// human-readable detail. Storage-layer errors never leak through here.
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

// jobResponse is the read projection of a job row served to the UI.
func jobResponse(job *models.VideoJob) fiber.Map {
	resp := fiber.Map{
		"id":              job.ID,
		"mode":            job.Mode,
		"status":          job.Status,
		"prompt":          job.Prompt,
		"provider_status": job.ProviderStatus,
		"created_at":      job.CreatedAt,
		"updated_at":      job.UpdatedAt,
	}
	if job.VideoURL != "" {
		resp["video_url"] = job.VideoURL
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return resp
}
