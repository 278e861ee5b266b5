package polarion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "secret-token")
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresToken(t *testing.T) {
	t.Setenv("POLARION_TOKEN", "")
	_, err := NewClient("https://polarion.example.com", "")
	assert.Error(t, err)
}

func TestNewClientTokenFromEnv(t *testing.T) {
	t.Setenv("POLARION_TOKEN", "env-token")
	client, err := NewClient("https://polarion.example.com/", "")
	require.NoError(t, err)
	assert.Equal(t, "env-token", client.Token)
	assert.Equal(t, "https://polarion.example.com", client.BaseURL)
}

func TestTestRuns(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/projects/OCPNET/testruns", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("query"), "finishedOn:")

		fmt.Fprint(w, `{"data": [
			{"id": "OCPNET/run-1", "attributes": {"status": "passed", "finishedOn": "2026-08-29T10:00:00Z"}},
			{"id": "OCPNET/run-2", "attributes": {"status": "failed"}}
		]}`)
	})

	runs, err := client.TestRuns(context.Background(), "OCPNET", 7)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "OCPNET/run-1", runs[0].ID)
	assert.Equal(t, "passed", runs[0].Status)
	assert.Equal(t, 2026, runs[0].Finished.Year())
	assert.True(t, runs[1].Finished.IsZero())
}

func TestTestCasesQueryComposition(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "type:testcase AND (title:bgp)", r.URL.Query().Get("query"))
		fmt.Fprint(w, `{"data": [{"id": "OCPNET/TC-1", "attributes": {"title": "bgp peering", "status": "approved"}}]}`)
	})

	cases, err := client.TestCases(context.Background(), "OCPNET", "title:bgp")
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "bgp peering", cases[0].Title)
}

func TestClientSurfacesHTTPErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such project", http.StatusNotFound)
	})

	_, err := client.TestRuns(context.Background(), "NOPE", 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "no such project")
}

func closure(id, closed string, openFor time.Duration) RegressionClosure {
	t, _ := time.Parse(time.RFC3339, closed)
	return RegressionClosure{ID: id, ClosedOn: t, OpenFor: openFor}
}

func TestFindMassClosureSweeps(t *testing.T) {
	var closures []RegressionClosure
	// 51 short-lived closures on one date tips strictly over a threshold
	// of 50; 50 on another date does not.
	for i := 0; i < 51; i++ {
		closures = append(closures, closure(fmt.Sprintf("a-%d", i), "2026-08-20T12:00:00Z", time.Hour))
	}
	for i := 0; i < 50; i++ {
		closures = append(closures, closure(fmt.Sprintf("b-%d", i), "2026-08-21T12:00:00Z", time.Hour))
	}
	// Long-lived closures never count toward a sweep.
	for i := 0; i < 60; i++ {
		closures = append(closures, closure(fmt.Sprintf("c-%d", i), "2026-08-22T12:00:00Z", 30*24*time.Hour))
	}

	sweeps := FindMassClosureSweeps(closures, 50)
	require.Len(t, sweeps, 1)
	assert.Equal(t, SuspectedSweep{Date: "2026-08-20", Count: 51}, sweeps[0])
}

func TestFilterSweeps(t *testing.T) {
	closures := []RegressionClosure{
		closure("swept", "2026-08-20T12:00:00Z", time.Hour),
		closure("long-lived-same-day", "2026-08-20T13:00:00Z", 30*24*time.Hour),
		closure("other-day", "2026-08-21T12:00:00Z", time.Hour),
	}
	sweeps := []SuspectedSweep{{Date: "2026-08-20", Count: 51}}

	remaining := FilterSweeps(closures, sweeps)
	require.Len(t, remaining, 2)
	assert.Equal(t, "long-lived-same-day", remaining[0].ID)
	assert.Equal(t, "other-day", remaining[1].ID)
}
