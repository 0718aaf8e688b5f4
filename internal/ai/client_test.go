package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaboard-app/ideaboard/internal/plans"
)

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.WriteHeader(status)
		resp := chatResponse{}
		resp.Choices = []struct {
			Message chatMessage `json:"message"`
		}{{Message: chatMessage{Role: "assistant", Content: content}}}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestComplete_ParsesAnalysis(t *testing.T) {
	srv := completionServer(t, http.StatusOK,
		`{"problem":"p","audience":"a","monetization":"m","competitors":["x"],"marketGaps":["g"],"demandProbability":"high"}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", 5*time.Second)
	analysis, err := c.Complete(context.Background(), plans.TierStandard, "an idea")
	require.NoError(t, err)

	assert.Equal(t, "p", analysis.Problem)
	assert.Equal(t, []string{"x"}, analysis.Competitors)
	assert.Equal(t, "high", analysis.DemandProbability)
}

func TestComplete_StripsCodeFence(t *testing.T) {
	srv := completionServer(t, http.StatusOK,
		"```json\n{\"problem\":\"p\",\"audience\":\"a\",\"monetization\":\"m\"}\n```")
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", 5*time.Second)
	analysis, err := c.Complete(context.Background(), plans.TierBasic, "an idea")
	require.NoError(t, err)
	assert.Equal(t, "p", analysis.Problem)
}

func TestComplete_UpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", 5*time.Second)
	_, err := c.Complete(context.Background(), plans.TierBasic, "an idea")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestComplete_MalformedJSONIsUpstreamError(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "sorry, I cannot help with that")
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", 5*time.Second)
	_, err := c.Complete(context.Background(), plans.TierBasic, "an idea")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestPlan_ParsesPhases(t *testing.T) {
	srv := completionServer(t, http.StatusOK,
		`{"platform":"Bolt","phases":[{"name":"Setup","description":"d","prompts":["do x"]}]}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", 5*time.Second)
	plan, err := c.Plan(context.Background(), plans.TierAdvanced, "an idea", "Bolt")
	require.NoError(t, err)

	assert.Equal(t, "Bolt", plan.Platform)
	require.Len(t, plan.Phases, 1)
	assert.Equal(t, []string{"do x"}, plan.Phases[0].Prompts)
}

func TestPlan_EmptyPhasesIsUpstreamError(t *testing.T) {
	srv := completionServer(t, http.StatusOK, `{"platform":"Bolt","phases":[]}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", 5*time.Second)
	_, err := c.Plan(context.Background(), plans.TierBasic, "an idea", "Bolt")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestComplete_ConnectionRefused(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "test-key", "test-model", time.Second)
	_, err := c.Complete(context.Background(), plans.TierBasic, "an idea")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
}
