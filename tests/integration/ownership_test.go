//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnershipIsolation(t *testing.T) {
	env := SetupTestEnv(t)

	// Create two users
	RegisterUser(t, env, "owner-a@example.com", "password123")
	RegisterUser(t, env, "owner-b@example.com", "password123")

	tokenA := LoginUser(t, env, "owner-a@example.com", "password123")
	tokenB := LoginUser(t, env, "owner-b@example.com", "password123")

	// User A generates an idea
	body := map[string]string{
		"title":     "User A Idea",
		"idea_text": "a carpooling service for rural commuters",
	}
	resp := DoRequest(t, env, "POST", "/api/v1/generate", body, tokenA)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	idea := data["idea"].(map[string]any)
	ideaAID := idea["id"].(string)

	t.Run("owner can access own idea", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/ideas/"+ideaAID, nil, tokenA)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("other user cannot GET idea", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/ideas/"+ideaAID, nil, tokenB)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("other user cannot DELETE idea", func(t *testing.T) {
		resp := DoRequest(t, env, "DELETE", "/api/v1/ideas/"+ideaAID, nil, tokenB)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("other user cannot generate a plan for the idea", func(t *testing.T) {
		resp := DoRequest(t, env, "POST", "/api/v1/ideas/"+ideaAID+"/plan",
			map[string]string{"platform": "Bolt"}, tokenB)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("listing only returns own ideas", func(t *testing.T) {
		// User B generates their own idea
		bodyB := map[string]string{
			"title":     "User B Idea",
			"idea_text": "a tool-lending library for neighborhoods",
		}
		DoRequest(t, env, "POST", "/api/v1/generate", bodyB, tokenB)

		// User A's list should not contain User B's ideas
		listResp := DoRequest(t, env, "GET", "/api/v1/ideas", nil, tokenA)
		require.Equal(t, http.StatusOK, listResp.StatusCode)

		listResult := ParseResponse(t, listResp)
		list := listResult["data"].([]any)
		for _, item := range list {
			got := item.(map[string]any)
			assert.NotEqual(t, "User B Idea", got["title"],
				"User A should not see User B's ideas")
		}
	})

	t.Run("unauthenticated access denied", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/ideas/"+ideaAID, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token access denied", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/ideas/"+ideaAID, nil, "invalid-jwt-token")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
