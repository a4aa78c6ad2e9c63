package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selin/memoria/internal/app/controllers"
	"github.com/selin/memoria/internal/app/repositories/inmemory"
	"github.com/selin/memoria/internal/app/routes"
	"github.com/selin/memoria/internal/app/services"
	"github.com/selin/memoria/internal/middleware"
	"github.com/selin/memoria/internal/pkg/identity"
	"github.com/selin/memoria/internal/pkg/revalidate"
)

const testSecret = "controller-test-secret"

type testAPI struct {
	router *gin.Engine
	store  *inmemory.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := inmemory.New()
	logger := zerolog.Nop()
	notifier := revalidate.NoopNotifier{}

	memoryService := services.NewMemoryService(store.Memories, store.Users, store.Communities, notifier, true, logger)
	userService := services.NewUserService(store.Users, notifier, logger)
	communityService := services.NewCommunityService(store.Communities, store.Memories, store.Users, notifier, logger)

	identityMiddleware := middleware.NewIdentityMiddleware(identity.NewVerifier(identity.Config{SecretKey: testSecret}))

	router := gin.New()
	routes.SetupRouter(
		router,
		controllers.NewMemoryController(memoryService),
		controllers.NewUserController(userService),
		controllers.NewCommunityController(communityService),
		identityMiddleware,
	)
	return &testAPI{router: router, store: store}
}

func (a *testAPI) token(t *testing.T, externalID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   externalID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (a *testAPI) do(t *testing.T, method, path, externalID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if externalID != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(t, externalID))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) onboard(t *testing.T, externalID, username string) {
	t.Helper()
	w := a.do(t, http.MethodPut, "/api/v1/users/me", externalID, gin.H{
		"username": username,
		"name":     "Test " + username,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

// decodeData unmarshals the data field of a structured response into out.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestRoutesRequireAuthentication(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/memories", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateMemoryAndReadFeed(t *testing.T) {
	api := newTestAPI(t)
	api.onboard(t, "ext-1", "alice")

	w := api.do(t, http.MethodPost, "/api/v1/memories", "ext-1", gin.H{"text": "hello world"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID int64 `json:"id"`
	}
	decodeData(t, w, &created)
	require.NotZero(t, created.ID)

	w = api.do(t, http.MethodGet, "/api/v1/memories?page=1&size=20", "ext-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var feed struct {
		Memories []struct {
			ID   int64  `json:"id"`
			Text string `json:"text"`
		} `json:"memories"`
		TotalItems int64 `json:"totalItems"`
		HasMore    bool  `json:"hasMore"`
	}
	decodeData(t, w, &feed)
	require.Len(t, feed.Memories, 1)
	assert.Equal(t, created.ID, feed.Memories[0].ID)
	assert.Equal(t, "hello world", feed.Memories[0].Text)
	assert.Equal(t, int64(1), feed.TotalItems)
	assert.False(t, feed.HasMore)
}

func TestCreateMemoryValidation(t *testing.T) {
	api := newTestAPI(t)
	api.onboard(t, "ext-1", "alice")

	// Text below the minimum length is rejected at the binding layer.
	w := api.do(t, http.MethodPost, "/api/v1/memories", "ext-1", gin.H{"text": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommentRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	api.onboard(t, "ext-1", "alice")
	api.onboard(t, "ext-2", "bob")

	w := api.do(t, http.MethodPost, "/api/v1/memories", "ext-1", gin.H{"text": "root memory"})
	require.Equal(t, http.StatusCreated, w.Code)
	var root struct {
		ID int64 `json:"id"`
	}
	decodeData(t, w, &root)

	w = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/memories/%d/comments", root.ID), "ext-2", gin.H{"text": "a reply"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/memories/%d", root.ID), "ext-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var thread struct {
		ID       int64 `json:"id"`
		Children []struct {
			Text   string `json:"text"`
			Author struct {
				Username string `json:"username"`
			} `json:"author"`
		} `json:"children"`
	}
	decodeData(t, w, &thread)
	require.Len(t, thread.Children, 1)
	assert.Equal(t, "a reply", thread.Children[0].Text)
	assert.Equal(t, "bob", thread.Children[0].Author.Username)
}

func TestDeleteMemoryEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.onboard(t, "ext-1", "alice")
	api.onboard(t, "ext-2", "bob")

	w := api.do(t, http.MethodPost, "/api/v1/memories", "ext-1", gin.H{"text": "to be deleted"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID int64 `json:"id"`
	}
	decodeData(t, w, &created)

	// A different user may not delete.
	w = api.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/memories/%d", created.ID), "ext-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/memories/%d", created.ID), "ext-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/memories/%d", created.ID), "ext-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Second delete reports not found.
	w = api.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/memories/%d", created.ID), "ext-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCurrentUserBeforeAndAfterOnboarding(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/users/me", "ext-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	api.onboard(t, "ext-1", "alice")

	w = api.do(t, http.MethodGet, "/api/v1/users/me", "ext-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var user struct {
		Username  string `json:"username"`
		Onboarded bool   `json:"onboarded"`
	}
	decodeData(t, w, &user)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.Onboarded)
}

func TestCommunityEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.onboard(t, "ext-1", "alice")
	api.onboard(t, "ext-2", "bob")

	w := api.do(t, http.MethodPost, "/api/v1/communities", "ext-1", gin.H{"name": "Gophers"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var community struct {
		ExternalID string `json:"externalId"`
	}
	decodeData(t, w, &community)

	w = api.do(t, http.MethodPost, "/api/v1/communities/"+community.ExternalID+"/members", "ext-2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/communities/"+community.ExternalID, "ext-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var detail struct {
		MemberCount int `json:"memberCount"`
	}
	decodeData(t, w, &detail)
	assert.Equal(t, 2, detail.MemberCount)

	w = api.do(t, http.MethodDelete, "/api/v1/communities/"+community.ExternalID+"/members/me", "ext-2", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
