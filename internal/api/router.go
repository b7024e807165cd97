package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/content-factory/internal/api/handler"
	"github.com/d60-Lab/content-factory/internal/api/middleware"
	"github.com/d60-Lab/content-factory/internal/service"
	"github.com/d60-Lab/content-factory/pkg/response"
)

// NewRouter 组装全部路由
func NewRouter(h *handler.Handler, auth *service.AuthService, serviceName string) *gin.Engine {
	registerValidations()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(otelgin.Middleware(serviceName))

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", h.OperatorLogin)

	authed := v1.Group("")
	authed.Use(middleware.JWTAuth(auth))
	{
		authed.GET("/auth/me", h.OperatorMe)

		accounts := authed.Group("/accounts")
		{
			accounts.POST("", h.CreateAccount)
			accounts.GET("", h.ListAccounts)
			accounts.POST("/import-session-from-text", h.ImportAccountSession)
			accounts.GET("/:id", h.GetAccount)
			accounts.PUT("/:id", h.UpdateAccount)
			accounts.DELETE("/:id", h.DeleteAccount)
			accounts.POST("/:id/login", h.AccountLogin)
			accounts.GET("/:id/status", h.AccountStatus)
			accounts.PUT("/:id/profile", h.EditAccountProfile)
			accounts.PUT("/:id/profile/privacy", h.SetAccountPrivacy)
			accounts.GET("/:id/activity", h.AccountActivity)
		}

		groups := authed.Group("/groups")
		{
			groups.POST("", h.CreateGroup)
			groups.GET("", h.ListGroups)
			groups.GET("/:id", h.GetGroup)
			groups.PUT("/:id", h.UpdateGroup)
			groups.DELETE("/:id", h.DeleteGroup)
			groups.GET("/:id/accounts", h.GroupAccounts)
		}

		proxies := authed.Group("/proxies")
		{
			proxies.POST("", h.CreateProxy)
			proxies.GET("", h.ListProxies)
			proxies.GET("/available", h.AvailableProxies)
			proxies.GET("/:id", h.GetProxy)
			proxies.PUT("/:id", h.UpdateProxy)
			proxies.DELETE("/:id", h.DeleteProxy)
			proxies.POST("/:id/check", h.CheckProxy)
			proxies.GET("/:id/accounts", h.ProxyAccounts)
		}

		posts := authed.Group("/posts")
		{
			posts.POST("", h.CreatePost)
			posts.GET("", h.ListPosts)
			posts.GET("/:id", h.GetPost)
			posts.PUT("/:id", h.UpdatePost)
			posts.DELETE("/:id", h.DeletePost)
			posts.POST("/:id/publish", h.PublishPost)
			posts.POST("/:id/stop", h.StopPost)
			posts.GET("/:id/executions", h.PostExecutions)
			posts.POST("/:id/translate", h.TranslatePost)
			posts.POST("/:id/test-post/:accountId", h.TestPost)
		}
	}
	return r
}
