package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/blogdesk/internal/app/maintenance"
	"github.com/charlesng35/blogdesk/internal/handlers/testutil"
	"github.com/charlesng35/blogdesk/internal/models"
)

func TestConfigHandler_GetAndUpdate(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.AdminToken()
	alice := env.CreateUser("alice", "secret", models.RoleUser)

	forbidden := env.Request(http.MethodGet, "/api/admin/config", nil, env.Token(alice))
	require.Equal(t, http.StatusForbidden, forbidden.Code)

	current := env.Request(http.MethodGet, "/api/admin/config", nil, admin)
	require.Equal(t, http.StatusOK, current.Code, current.Body.String())
	var payload struct {
		Schedule struct {
			UpdateCache string `json:"update_cache"`
			Source      string `json:"source"`
		} `json:"schedule"`
		Jobs []maintenance.JobInfo `json:"jobs"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, current).Data, &payload)
	require.Equal(t, "default", payload.Schedule.Source)
	require.Equal(t, "*/10 * * * *", payload.Schedule.UpdateCache)
	require.NotEmpty(t, payload.Jobs)

	incomplete := env.Request(http.MethodPost, "/api/admin/config", map[string]string{"update_cache": "* * * * *"}, admin)
	require.Equal(t, http.StatusBadRequest, incomplete.Code)
	require.Equal(t, "Please fill all input !!", testutil.DecodeResponse(t, incomplete).Error.Message)

	invalid := env.Request(http.MethodPost, "/api/admin/config", map[string]string{
		"update_cache":      "* * * * *",
		"update_count_blog": "not a cron",
		"update_count_user": "@hourly",
	}, admin)
	require.Equal(t, http.StatusBadRequest, invalid.Code)
	require.Equal(t, "Please correct the cron extension !!", testutil.DecodeResponse(t, invalid).Error.Message)

	updated := env.Request(http.MethodPost, "/api/admin/config", map[string]string{
		"update_cache":      "*/2 * * * *",
		"update_count_blog": "@hourly",
		"update_count_user": "@daily",
	}, admin)
	require.Equal(t, http.StatusOK, updated.Code, updated.Body.String())
	require.Equal(t, "Update config successfully !!", testutil.DecodeResponse(t, updated).Message)

	spec, ok := env.Scheduler.Spec(maintenance.JobRefreshCache)
	require.True(t, ok)
	require.Equal(t, "*/2 * * * *", spec)
}
