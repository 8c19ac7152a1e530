package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relationship-service/internal/mocks"
	"relationship-service/internal/models"
	"relationship-service/internal/repositories"
)

func setupUserRouter(handler *UserHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.GET("/users/me/settings", handler.GetSettings)
	r.PATCH("/users/me/settings", handler.UpdateSettings)
	r.PUT("/users/me/profile", handler.SyncProfile)
	return r
}

func TestGetSettingsOK(t *testing.T) {
	users := new(mocks.MockUserRepository)
	router := setupUserRouter(NewUserHandler(users, nil))
	users.On("GetProfile", mock.Anything, int64(1)).
		Return(&models.UserProfile{ID: 1, Username: "alice", Hidden: true, AcceptsRequests: false}, nil).Once()

	rec := doJSON(router, http.MethodGet, "/users/me/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp settingsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, settingsResponse{AcceptsRequests: false, ProfileHidden: true}, resp)
	users.AssertExpectations(t)
}

func TestGetSettingsNotFound(t *testing.T) {
	users := new(mocks.MockUserRepository)
	router := setupUserRouter(NewUserHandler(users, nil))
	users.On("GetProfile", mock.Anything, int64(1)).Return(nil, repositories.ErrNotFound).Once()

	rec := doJSON(router, http.MethodGet, "/users/me/settings", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateSettingsPartial(t *testing.T) {
	users := new(mocks.MockUserRepository)
	pub := new(mocks.MockPublisher)
	router := setupUserRouter(NewUserHandler(users, newAuditEmitter(pub)))

	users.On("UpdateSettings", mock.Anything, int64(1), mock.MatchedBy(func(s models.PrivacySettings) bool {
		return s.AcceptsRequests != nil && !*s.AcceptsRequests && s.ProfileHidden == nil
	})).Return(&models.UserProfile{ID: 1, AcceptsRequests: false}, nil).Once()

	rec := doJSON(router, http.MethodPatch, "/users/me/settings", `{"accepts_requests":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp settingsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.AcceptsRequests)
	users.AssertExpectations(t)
}

func TestUpdateSettingsRejectsEmptyPatch(t *testing.T) {
	users := new(mocks.MockUserRepository)
	router := setupUserRouter(NewUserHandler(users, nil))

	rec := doJSON(router, http.MethodPatch, "/users/me/settings", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	users.AssertNotCalled(t, "UpdateSettings", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateSettingsStoreError(t *testing.T) {
	users := new(mocks.MockUserRepository)
	router := setupUserRouter(NewUserHandler(users, nil))
	users.On("UpdateSettings", mock.Anything, int64(1), mock.Anything).Return(nil, errors.New("db down")).Once()

	rec := doJSON(router, http.MethodPatch, "/users/me/settings", `{"profile_hidden":true}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSyncProfileOK(t *testing.T) {
	users := new(mocks.MockUserRepository)
	pub := new(mocks.MockPublisher)
	router := setupUserRouter(NewUserHandler(users, newAuditEmitter(pub)))
	users.On("SyncProfile", mock.Anything, int64(1), "alice", "https://cdn.example.com/a.png").
		Return(&models.UserProfile{ID: 1, Username: "alice", AvatarURL: "https://cdn.example.com/a.png", AcceptsRequests: true}, nil).Once()

	rec := doJSON(router, http.MethodPut, "/users/me/profile", `{"username":" alice ","avatar_url":"https://cdn.example.com/a.png"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp profileResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "alice", resp.Username)
	assert.True(t, resp.AcceptsRequests)
	users.AssertExpectations(t)
}

func TestSyncProfileValidation(t *testing.T) {
	users := new(mocks.MockUserRepository)
	router := setupUserRouter(NewUserHandler(users, nil))

	for _, body := range []string{`{}`, `{"username":"   "}`, `{"username":"a","avatar_url":"not a url"}`} {
		rec := doJSON(router, http.MethodPut, "/users/me/profile", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	users.AssertNotCalled(t, "SyncProfile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncProfileUsernameTaken(t *testing.T) {
	users := new(mocks.MockUserRepository)
	router := setupUserRouter(NewUserHandler(users, nil))
	users.On("SyncProfile", mock.Anything, int64(1), "bob", "").Return(nil, repositories.ErrConflict).Once()

	rec := doJSON(router, http.MethodPut, "/users/me/profile", `{"username":"bob"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}
