package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/mweidner/JadeFrame/internal/pkg/middleware"
)

const maxJobPageSize = 50

// HandleGetJob serves a single job scoped to its owner. Other users' job ids
// answer 404, not 403, so ids cannot be probed.
func (a *API) HandleGetJob(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	jobID := c.Params("id")

	job, err := a.Jobs.GetByIDForUser(jobID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "job not found")
		}
		log.Errorf("[API] fetching job %s: %v", jobID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load job")
	}

	return c.JSON(jobResponse(job))
}

// HandleJobStatus is the cheap polling endpoint: cache first, database on
// miss. The UI hits this every few seconds while a job runs.
func (a *API) HandleJobStatus(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	jobID := c.Params("id")

	// Cache entries are owner-keyed, so a hit here is already scoped to the
	// requesting user; another user's job id always falls through to the
	// owner-checked database read below.
	if status, err := a.Statuses.GetJobStatus(userID, jobID); err == nil && status != "" {
		return c.JSON(fiber.Map{"id": jobID, "status": status})
	}

	job, err := a.Jobs.GetByIDForUser(jobID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "job not found")
		}
		log.Errorf("[API] status for job %s: %v", jobID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load job status")
	}

	if cacheErr := a.Statuses.SetJobStatus(userID, job.ID, job.Status); cacheErr != nil {
		log.Warnf("[API] caching status for job %s: %v", job.ID, cacheErr)
	}

	resp := fiber.Map{"id": job.ID, "status": job.Status}
	if job.VideoURL != "" {
		resp["video_url"] = job.VideoURL
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(resp)
}

// HandleActiveJob returns the user's current queued or running job, if any.
func (a *API) HandleActiveJob(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	job, err := a.Jobs.GetCurrentByUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"job": nil})
		}
		log.Errorf("[API] active job for user %d: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load active job")
	}

	return c.JSON(fiber.Map{"job": jobResponse(job)})
}

// HandleListJobs pages through the user's job history, newest first.
func (a *API) HandleListJobs(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > maxJobPageSize {
		limit = 20
	}

	jobs, err := a.Jobs.ListByUser(userID, offset, limit)
	if err != nil {
		log.Errorf("[API] listing jobs for user %d: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not list jobs")
	}

	out := make([]fiber.Map, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobResponse(&jobs[i]))
	}
	return c.JSON(fiber.Map{"jobs": out, "offset": offset, "limit": limit})
}
