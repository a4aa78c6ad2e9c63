package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/selin/memoria/internal/app/models/dto"
	"github.com/selin/memoria/internal/app/services"
	"github.com/selin/memoria/internal/middleware"
	"github.com/selin/memoria/internal/pkg/apperrors"
	"github.com/selin/memoria/internal/pkg/helpers"
)

// MemoryController handles memory and thread operations
type MemoryController struct {
	memoryService services.MemoryService
}

// NewMemoryController creates a new MemoryController
func NewMemoryController(memoryService services.MemoryService) *MemoryController {
	return &MemoryController{memoryService: memoryService}
}

// GetFeed handles the paginated top-level feed
// @Summary Get the memory feed
// @Description Returns a page of top-level memories, newest first, each with author and direct replies.
// @Tags memories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (1-based)" default(1) minimum(1)
// @Param size query int false "Page size (default: 20, max: 100)" default(20) minimum(1) maximum(100)
// @Success 200 {object} dto.StructuredResponse{data=dto.MemoryFeedResponse} "Feed retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /memories [get]
func (c *MemoryController) GetFeed(ctx *gin.Context) {
	page, pageSize := helpers.ParsePaginationParams(ctx)

	feed, err := c.memoryService.GetFeed(ctx, page, pageSize)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(feed, "Feed retrieved successfully"))
}

// CreateMemory handles posting a new top-level memory
// @Summary Create a memory
// @Description Creates a top-level memory for the calling user, optionally posted into a community.
// @Tags memories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateMemoryRequest true "Memory content"
// @Success 201 {object} dto.StructuredResponse{data=dto.CreateMemoryResponse} "Memory created"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Community not found"
// @Router /memories [post]
func (c *MemoryController) CreateMemory(ctx *gin.Context) {
	var req dto.CreateMemoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleAPIError(ctx, apperrors.ErrValidationFailed)
		return
	}

	created, err := c.memoryService.CreateMemory(ctx, middleware.ExternalUserID(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewStructuredResponse(created, "Memory created"))
}

// GetMemory handles the thread detail view
// @Summary Get a memory thread
// @Description Returns a memory with its author, community and two levels of replies.
// @Tags memories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Memory ID"
// @Success 200 {object} dto.StructuredResponse{data=dto.MemoryResponse} "Memory retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Memory not found"
// @Router /memories/{id} [get]
func (c *MemoryController) GetMemory(ctx *gin.Context) {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, apperrors.ErrBadRequest)
		return
	}

	memory, err := c.memoryService.GetMemory(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(memory, "Memory retrieved successfully"))
}

// AddComment handles replying to a memory
// @Summary Add a comment
// @Description Creates a reply under the given memory.
// @Tags memories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Parent memory ID"
// @Param request body dto.AddCommentRequest true "Comment content"
// @Success 201 {object} dto.StructuredResponse{data=dto.CreateMemoryResponse} "Comment added"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Memory not found"
// @Router /memories/{id}/comments [post]
func (c *MemoryController) AddComment(ctx *gin.Context) {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, apperrors.ErrBadRequest)
		return
	}

	var req dto.AddCommentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleAPIError(ctx, apperrors.ErrValidationFailed)
		return
	}

	created, err := c.memoryService.AddComment(ctx, middleware.ExternalUserID(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewStructuredResponse(created, "Comment added"))
}

// DeleteMemory handles subtree deletion
// @Summary Delete a memory
// @Description Deletes a memory and its whole reply subtree. Only the author may delete.
// @Tags memories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Memory ID"
// @Success 200 {object} dto.StructuredResponse "Memory deleted"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Not the author"
// @Failure 404 {object} dto.ErrorResponse "Memory not found"
// @Router /memories/{id} [delete]
func (c *MemoryController) DeleteMemory(ctx *gin.Context) {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, apperrors.ErrBadRequest)
		return
	}

	if err := c.memoryService.DeleteMemory(ctx, middleware.ExternalUserID(ctx), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewStructuredResponse(nil, "Memory deleted"))
}

// parseIDParam parses a positive int64 path parameter.
func parseIDParam(ctx *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ErrBadRequest
	}
	return id, nil
}
