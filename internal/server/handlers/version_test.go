package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHandlerIncludesBuildMetadata(t *testing.T) {
	SetVersionInfo("1.2.3", "abcd123", "2026-10-16T12:00:00Z")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown") })

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, ServiceName, resp.Service)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "abcd123", resp.Commit)
	assert.Equal(t, "2026-10-16T12:00:00Z", resp.BuildDate)
	assert.NotEmpty(t, resp.GoVersion)
	assert.Contains(t, resp.Platform, "/")
	assert.NotEmpty(t, resp.Gofulmen)
	assert.NotEmpty(t, resp.Crucible)
}
