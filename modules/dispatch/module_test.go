package dispatch_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	dispatchclient "github.com/shipline/shipline/internal/dispatch"
	"github.com/shipline/shipline/internal/workspace"
	"github.com/shipline/shipline/modules/dispatch"
)

func TestDispatch_TriggersDownstreamWorkflow(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := dispatchclient.New(dispatchclient.WithBaseURL(server.URL))
	defer client.Close()
	ws := &workspace.Workspace{Dir: t.TempDir(), Dispatch: client}

	out, err := dispatch.OnRunDispatch(context.Background(), ws, &dispatch.Input{
		Repository: "tailwindlabs/play.tailwindcss.com",
		Workflow:   "upgrade-tailwindcss.yml",
		Token:      "ghp_test",
		Inputs:     map[string]string{"version": "0.0.0-insiders.abc1234"},
	})
	require.NoError(t, err)

	require.Equal(t, "/repos/tailwindlabs/play.tailwindcss.com/actions/workflows/upgrade-tailwindcss.yml/dispatches", gotPath)
	require.Equal(t, "Bearer ghp_test", gotAuth)
	require.Equal(t, "main", gotBody["ref"], "ref defaults to main")
	require.Equal(t, map[string]any{"version": "0.0.0-insiders.abc1234"}, gotBody["inputs"])

	require.Equal(t, "tailwindlabs/play.tailwindcss.com", out.GetAttr("repository").AsString())
	require.Equal(t, "upgrade-tailwindcss.yml", out.GetAttr("workflow").AsString())
}

func TestDispatch_DryRunSendsNothing(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := dispatchclient.New(dispatchclient.WithBaseURL(server.URL))
	defer client.Close()
	ws := &workspace.Workspace{Dir: t.TempDir(), Dispatch: client, DryRun: true}

	out, err := dispatch.OnRunDispatch(context.Background(), ws, &dispatch.Input{
		Repository: "acme/downstream",
		Workflow:   "update.yml",
		Token:      "ghp_test",
	})
	require.NoError(t, err)
	require.True(t, out.IsNull())
	require.Zero(t, hits.Load(), "dry runs must not reach the network")
}

func TestDispatch_MissingClientIsFatal(t *testing.T) {
	t.Parallel()

	ws := &workspace.Workspace{Dir: t.TempDir()}

	_, err := dispatch.OnRunDispatch(context.Background(), ws, &dispatch.Input{
		Repository: "acme/downstream",
		Workflow:   "update.yml",
		Token:      "ghp_test",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "dispatch client is not configured")
}

func TestDispatch_RejectionPropagates(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := dispatchclient.New(dispatchclient.WithBaseURL(server.URL))
	defer client.Close()
	ws := &workspace.Workspace{Dir: t.TempDir(), Dispatch: client}

	_, err := dispatch.OnRunDispatch(context.Background(), ws, &dispatch.Input{
		Repository: "acme/downstream",
		Workflow:   "missing.yml",
		Token:      "ghp_test",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejected")
}
