package web

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler, allowedOrigins []string) {
	if len(allowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Origin", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	router.MaxMultipartMemory = maxUploadMemory
	router.SetHTMLTemplate(LoadTemplates())

	router.GET("/healthz", handler.Health)

	views := router.Group("/", handler.LoadSession)
	{
		views.POST("/logout", handler.Logout)

		public := views.Group("/", RedirectIfAuthenticated)
		{
			public.GET("/", handler.ShowLogin)
			public.POST("/", handler.Login)
			public.GET("/register", handler.ShowRegister)
			public.POST("/register", handler.Register)
		}

		protected := views.Group("/", RequireSession)
		{
			protected.GET("/home", handler.Home)
			protected.POST("/property", handler.CreateProperty)
			protected.GET("/property/:id", handler.ShowProperty)
			protected.POST("/property/:id/edit", handler.UpdateProperty)
			protected.POST("/property/:id/status", handler.ToggleProperty)
			protected.POST("/property/:id/delete", handler.DeleteProperty)
			protected.POST("/property/:id/favorite", handler.AddFavorite)
			protected.POST("/property/:id/unfavorite", handler.RemoveFavorite)
			protected.GET("/properties", handler.MyProperties)
			protected.GET("/favorites", handler.Favorites)
			protected.GET("/user", handler.ShowUser)
			protected.POST("/user", handler.UpdateUser)
			protected.POST("/user/create", handler.CreateUser)
		}
	}
}
