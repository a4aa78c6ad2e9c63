package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/selin/memoria/internal/app/controllers"
	"github.com/selin/memoria/internal/middleware"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	memoryController *controllers.MemoryController,
	userController *controllers.UserController,
	communityController *controllers.CommunityController,
	identityMiddleware *middleware.IdentityMiddleware,
) {
	// API version group; every route requires a verified identity token.
	v1 := router.Group("/api/v1")
	v1.Use(identityMiddleware.RequireIdentity())

	memories := v1.Group("/memories")
	{
		memories.GET("", memoryController.GetFeed)
		memories.POST("", memoryController.CreateMemory)
		memories.GET("/:id", memoryController.GetMemory)
		memories.DELETE("/:id", memoryController.DeleteMemory)
		memories.POST("/:id/comments", memoryController.AddComment)
	}

	users := v1.Group("/users")
	{
		users.GET("", userController.SearchUsers)
		users.GET("/me", userController.GetCurrentUser)
		users.PUT("/me", userController.UpdateUser)
		users.GET("/me/activity", userController.GetActivity)
		users.GET("/:id/memories", userController.GetUserPosts)
	}

	communities := v1.Group("/communities")
	{
		communities.GET("", communityController.ListCommunities)
		communities.POST("", communityController.CreateCommunity)
		communities.GET("/:id", communityController.GetCommunity)
		communities.GET("/:id/memories", communityController.GetCommunityPosts)
		communities.POST("/:id/members", communityController.JoinCommunity)
		communities.DELETE("/:id/members/me", communityController.LeaveCommunity)
	}
}
