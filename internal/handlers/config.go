package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/blogdesk/internal/app/maintenance"
	"github.com/charlesng35/blogdesk/internal/services"
	"github.com/charlesng35/blogdesk/pkg/response"
)

// JobLister reports registered maintenance jobs.
type JobLister interface {
	Jobs() []maintenance.JobInfo
}

// ConfigHandler exposes the refresh cadence configuration.
type ConfigHandler struct {
	schedule *services.ScheduleService
	jobs     JobLister
}

// NewConfigHandler constructs a ConfigHandler. jobs may be nil.
func NewConfigHandler(schedule *services.ScheduleService, jobs JobLister) *ConfigHandler {
	return &ConfigHandler{schedule: schedule, jobs: jobs}
}

type scheduleRequest struct {
	UpdateCache     string `json:"update_cache"`
	UpdateCountBlog string `json:"update_count_blog"`
	UpdateCountUser string `json:"update_count_user"`
}

// Get returns the effective cadences.
//
// GET /api/admin/config
func (h *ConfigHandler) Get(c *gin.Context) {
	effective, err := h.schedule.Effective(requestContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	payload := gin.H{"schedule": effective}
	if h.jobs != nil {
		payload["jobs"] = h.jobs.Jobs()
	}
	response.Success(c, http.StatusOK, payload)
}

// Update replaces the stored cadences and reschedules the jobs.
//
// POST /api/admin/config
func (h *ConfigHandler) Update(c *gin.Context) {
	var req scheduleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	next, err := h.schedule.Replace(requestContext(c), services.Schedule{
		UpdateCache:     req.UpdateCache,
		UpdateCountBlog: req.UpdateCountBlog,
		UpdateCountUser: req.UpdateCountUser,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Update config successfully !!", next)
}
