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

// CommunityController handles community operations
type CommunityController struct {
	communityService services.CommunityService
}

// NewCommunityController creates a new CommunityController
func NewCommunityController(communityService services.CommunityService) *CommunityController {
	return &CommunityController{communityService: communityService}
}

// ListCommunities handles listing communities
// @Summary List communities
// @Description Returns a page of communities, optionally filtered by a case-insensitive name search.
// @Tags communities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by name"
// @Param page query int false "Page number (1-based)" default(1) minimum(1)
// @Param size query int false "Page size (default: 20, max: 100)" default(20) minimum(1) maximum(100)
// @Success 200 {object} dto.StructuredResponse{data=dto.CommunityListResponse} "Communities retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /communities [get]
func (c *CommunityController) ListCommunities(ctx *gin.Context) {
	page, pageSize := helpers.ParsePaginationParams(ctx)
	search := ctx.Query("search")

	communities, err := c.communityService.ListCommunities(ctx, search, page, pageSize)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(communities, "Communities retrieved successfully"))
}

// CreateCommunity handles community creation
// @Summary Create a community
// @Description Creates a community. The caller becomes its first member.
// @Tags communities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateCommunityRequest true "Community fields"
// @Success 201 {object} dto.StructuredResponse{data=dto.CommunityResponse} "Community created"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 409 {object} dto.ErrorResponse "Community name already exists"
// @Router /communities [post]
func (c *CommunityController) CreateCommunity(ctx *gin.Context) {
	var req dto.CreateCommunityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleAPIError(ctx, apperrors.ErrValidationFailed)
		return
	}

	community, err := c.communityService.CreateCommunity(ctx, middleware.ExternalUserID(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewStructuredResponse(community, "Community created"))
}

// GetCommunity handles the community detail view
// @Summary Get a community
// @Description Returns a community with its members.
// @Tags communities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Community external ID"
// @Success 200 {object} dto.StructuredResponse{data=dto.CommunityDetailResponse} "Community retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Community not found"
// @Router /communities/{id} [get]
func (c *CommunityController) GetCommunity(ctx *gin.Context) {
	community, err := c.communityService.GetCommunity(ctx, ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(community, "Community retrieved successfully"))
}

// GetCommunityPosts handles listing a community's memories
// @Summary Get a community's memories
// @Description Returns the memories posted under a community.
// @Tags communities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Community external ID"
// @Success 200 {object} dto.StructuredResponse{data=dto.CommunityPostsResponse} "Posts retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Community not found"
// @Router /communities/{id}/memories [get]
func (c *CommunityController) GetCommunityPosts(ctx *gin.Context) {
	posts, err := c.communityService.GetCommunityPosts(ctx, ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(posts, "Posts retrieved successfully"))
}

// JoinCommunity handles membership join
// @Summary Join a community
// @Description Adds the caller to the community's member list.
// @Tags communities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Community external ID"
// @Success 200 {object} dto.StructuredResponse "Joined community"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Community not found"
// @Failure 409 {object} dto.ErrorResponse "Already a member"
// @Router /communities/{id}/members [post]
func (c *CommunityController) JoinCommunity(ctx *gin.Context) {
	if err := c.communityService.JoinCommunity(ctx, ctx.Param("id"), middleware.ExternalUserID(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(nil, "Joined community"))
}

// LeaveCommunity handles membership leave
// @Summary Leave a community
// @Description Removes the caller from the community's member list.
// @Tags communities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Community external ID"
// @Success 200 {object} dto.StructuredResponse "Left community"
// @Failure 400 {object} dto.ErrorResponse "Not a member"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Community not found"
// @Router /communities/{id}/members/me [delete]
func (c *CommunityController) LeaveCommunity(ctx *gin.Context) {
	if err := c.communityService.LeaveCommunity(ctx, ctx.Param("id"), middleware.ExternalUserID(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(nil, "Left community"))
}
