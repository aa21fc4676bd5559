package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/blogdesk/internal/handlers/testutil"
)

func TestHealthAndFallbackRoutes(t *testing.T) {
	env := testutil.NewEnv(t)

	health := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, health.Code)
	var payload map[string]string
	testutil.DecodeInto(t, testutil.DecodeResponse(t, health).Data, &payload)
	require.Equal(t, "ok", payload["status"])
	require.Equal(t, "ok", payload["database"])

	metrics := env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, metrics.Code)

	missing := env.Request(http.MethodGet, "/api/nothing-here", nil, "")
	require.Equal(t, http.StatusNotFound, missing.Code)

	wrongMethod := env.Request(http.MethodPatch, "/health", nil, "")
	require.Equal(t, http.StatusMethodNotAllowed, wrongMethod.Code)
}
