package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appdedupe/appdedupe/internal/catalog/repository"
	"github.com/appdedupe/appdedupe/internal/models"
)

const slackCSV = "canonical name,variants\nSlack,\"Slack Desktop, Slack for Windows\"\n,orphan\n"

func (e *testEnv) counts(t *testing.T) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	c, err := e.store.CountClusters(ctx)
	require.NoError(t, err)
	a, err := e.store.CountApps(ctx, repository.AppFilter{})
	require.NoError(t, err)
	return c, a
}

func (e *testEnv) seedCatalog(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	c := &models.Cluster{Name: "Zoom", CanonicalName: "Zoom"}
	require.NoError(t, e.store.CreateCluster(ctx, c))
	require.NoError(t, e.store.CreateApp(ctx, &models.AppName{Name: "Zoom", ClusterID: c.ID}))
}

func TestUploadCSV_NonAdminForbidden(t *testing.T) {
	e := newTestEnv(t)
	e.seedCatalog(t)
	jane := e.register(t, "Jane", "jane@example.com")
	beforeC, beforeA := e.counts(t)

	w := e.upload(t, jane.Token, "file", "apps.csv", slackCSV)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.JSONEq(t, `{"error":"Access denied"}`, w.Body.String())

	c, a := e.counts(t)
	require.Equal(t, beforeC, c)
	require.Equal(t, beforeA, a)
	runs, err := e.runs.List(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, runs)
	require.Empty(t, e.files.objects)
}

func TestUploadCSV_Errors(t *testing.T) {
	e := newTestEnv(t)
	e.seedCatalog(t)
	admin := e.register(t, "Admin", adminEmail)
	beforeC, beforeA := e.counts(t)

	w := e.upload(t, admin.Token, "", "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "No file uploaded")

	w = e.upload(t, admin.Token, "file", "bad.csv", "canonical name,variants\n\"Slack,oops\n")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Invalid CSV format")

	c, a := e.counts(t)
	require.Equal(t, beforeC, c)
	require.Equal(t, beforeA, a)
}

func TestUploadCSV_ReplacesCatalog(t *testing.T) {
	e := newTestEnv(t)
	e.seedCatalog(t)
	admin := e.register(t, "Admin", adminEmail)

	w := e.upload(t, admin.Token, "file", "apps.csv", slackCSV)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Message  string              `json:"message"`
		Clusters int                 `json:"clusters"`
		Apps     int                 `json:"apps"`
		Skipped  []models.SkippedRow `json:"skipped"`
		Run      models.IngestRun    `json:"run"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, "CSV ingested successfully", out.Message)
	require.Equal(t, 1, out.Clusters)
	require.Equal(t, 3, out.Apps)
	require.Len(t, out.Skipped, 1)
	require.Contains(t, e.files.objects, out.Run.ObjectKey)

	c, a := e.counts(t)
	require.EqualValues(t, 1, c)
	require.EqualValues(t, 3, a)

	w = e.do(http.MethodGet, "/api/admin/ingest-runs", admin.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var runs []models.IngestRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)

	w = e.do(http.MethodGet, "/api/admin/ingest-runs/"+out.Run.ID, admin.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "https://files.example.com/")

	require.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/admin/ingest-runs/nope", admin.Token, "").Code)
	require.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/admin/ingest-runs?limit=x", admin.Token, "").Code)
}

func TestAdminRoutesGated(t *testing.T) {
	e := newTestEnv(t)
	jane := e.register(t, "Jane", "jane@example.com")
	for _, p := range []string{"/api/admin/export-clusters", "/api/admin/stats", "/api/admin/ingest-runs"} {
		require.Equal(t, http.StatusForbidden, e.do(http.MethodGet, p, jane.Token, "").Code, p)
		require.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, p, "", "").Code, p)
	}
}

func TestReviewFlow_ExportStatsLeaderboard(t *testing.T) {
	e := newTestEnv(t)
	admin := e.register(t, "Admin", adminEmail)
	jane := e.register(t, "Jane", "jane@example.com")
	require.Equal(t, http.StatusOK, e.upload(t, admin.Token, "file", "apps.csv", slackCSV).Code)

	w := e.do(http.MethodGet, "/api/admin/export-clusters", admin.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())

	w = e.do(http.MethodGet, "/api/apps/unconfirmed", jane.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var apps []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apps))
	require.Len(t, apps, 3)
	for _, a := range apps {
		require.Equal(t, http.StatusOK, e.do(http.MethodPatch, "/api/apps/"+a.ID+"/confirm", jane.Token, "").Code)
	}

	w = e.do(http.MethodGet, "/api/admin/export-clusters", admin.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var export []struct {
		Cluster string   `json:"cluster"`
		Apps    []string `json:"apps"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &export))
	require.Len(t, export, 1)
	require.Equal(t, "Slack", export[0].Cluster)
	require.ElementsMatch(t, []string{"Slack", "Slack Desktop", "Slack for Windows"}, export[0].Apps)

	w = e.do(http.MethodGet, "/api/admin/stats", admin.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"totalApps":3,"confirmedApps":3,"unconfirmedApps":0,"pendingReviews":0}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/leaderboard", admin.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var board []struct {
		UserID string `json:"userId"`
		Count  int    `json:"count"`
		XP     int    `json:"xp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board, 1)
	require.Equal(t, jane.User.ID, board[0].UserID)
	require.Equal(t, 3, board[0].Count)
	require.Equal(t, 150, board[0].XP)

	w = e.do(http.MethodGet, "/api/stats", jane.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var dash struct {
		Streak    int `json:"streak"`
		XP        int `json:"xp"`
		TeamStats struct {
			TotalConfirmed int `json:"totalConfirmed"`
			RecentActivity []struct {
				UserName string `json:"userName"`
			} `json:"recentActivity"`
		} `json:"teamStats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dash))
	require.Equal(t, 1, dash.Streak)
	require.Equal(t, 150, dash.XP)
	require.Equal(t, 3, dash.TeamStats.TotalConfirmed)
	require.Len(t, dash.TeamStats.RecentActivity, 3)
	require.Equal(t, "Jane", dash.TeamStats.RecentActivity[0].UserName)

	w = e.do(http.MethodGet, "/api/stats/achievements", jane.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"id":"perfection"`)
}
