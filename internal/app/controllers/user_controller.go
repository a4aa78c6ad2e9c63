package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/selin/memoria/internal/app/models/dto"
	"github.com/selin/memoria/internal/app/services"
	"github.com/selin/memoria/internal/middleware"
	"github.com/selin/memoria/internal/pkg/apperrors"
	"github.com/selin/memoria/internal/pkg/helpers"
)

// UserController handles user profile operations
type UserController struct {
	userService services.UserService
}

// NewUserController creates a new UserController
func NewUserController(userService services.UserService) *UserController {
	return &UserController{userService: userService}
}

// GetCurrentUser handles fetching the caller's profile
// @Summary Get the current user
// @Description Returns the caller's profile. 404 means the caller has not completed onboarding.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.StructuredResponse{data=dto.UserResponse} "User retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "User not onboarded"
// @Router /users/me [get]
func (c *UserController) GetCurrentUser(ctx *gin.Context) {
	user, err := c.userService.GetCurrentUser(ctx, middleware.ExternalUserID(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(user, "User retrieved successfully"))
}

// UpdateUser handles onboarding and profile updates
// @Summary Update the current user
// @Description Creates or updates the caller's profile. The first successful call completes onboarding.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateUserRequest true "Profile fields"
// @Success 200 {object} dto.StructuredResponse{data=dto.UserResponse} "Profile updated"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 409 {object} dto.ErrorResponse "Username already taken"
// @Router /users/me [put]
func (c *UserController) UpdateUser(ctx *gin.Context) {
	var req dto.UpdateUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleAPIError(ctx, apperrors.ErrValidationFailed)
		return
	}

	user, err := c.userService.UpdateUser(ctx, middleware.ExternalUserID(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(user, "Profile updated"))
}

// SearchUsers handles user search
// @Summary Search users
// @Description Returns users matching the search term by username or name, excluding the caller.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by username or name"
// @Param sort query string false "Sort by creation time: asc or desc" default(desc)
// @Param page query int false "Page number (1-based)" default(1) minimum(1)
// @Param size query int false "Page size (default: 20, max: 100)" default(20) minimum(1) maximum(100)
// @Success 200 {object} dto.StructuredResponse{data=dto.UserListResponse} "Users retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /users [get]
func (c *UserController) SearchUsers(ctx *gin.Context) {
	page, pageSize := helpers.ParsePaginationParams(ctx)
	search := ctx.Query("search")
	sortOrder := ctx.DefaultQuery("sort", "desc")

	users, err := c.userService.SearchUsers(ctx, middleware.ExternalUserID(ctx), search, sortOrder, page, pageSize)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(users, "Users retrieved successfully"))
}

// GetActivity handles the caller's reply activity
// @Summary Get activity
// @Description Returns the replies other users left on the caller's memories.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.StructuredResponse{data=dto.ActivityResponse} "Activity retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not onboarded"
// @Router /users/me/activity [get]
func (c *UserController) GetActivity(ctx *gin.Context) {
	activity, err := c.userService.GetActivity(ctx, middleware.ExternalUserID(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(activity, "Activity retrieved successfully"))
}

// GetUserPosts handles listing a user's memories
// @Summary Get a user's memories
// @Description Returns a user's profile together with the memories they authored.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} dto.StructuredResponse{data=dto.UserPostsResponse} "Posts retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "User not found"
// @Router /users/{id}/memories [get]
func (c *UserController) GetUserPosts(ctx *gin.Context) {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, apperrors.ErrBadRequest)
		return
	}

	posts, err := c.userService.GetUserPosts(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(posts, "Posts retrieved successfully"))
}
