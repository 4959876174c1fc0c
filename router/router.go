package router

import (
	"kyb-gateway/handler"
	"kyb-gateway/middleware"
	"kyb-gateway/pkg/metrics"
	"kyb-gateway/pkg/queue"
	"kyb-gateway/pkg/signature"
	"kyb-gateway/repository"
	"kyb-gateway/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies 路由所需的服务，可选项为 nil 时对应功能关闭
type Dependencies struct {
	ClientService   service.ClientServiceInterface
	Verification    service.VerificationServiceInterface
	TaskRepo        repository.TaskRepository
	TaskQueue       queue.TaskQueue                 // 可选，异步开户
	WebhookVerifier *signature.DigestVerifier       // 可选，回调摘要校验
	RateLimiter     *middleware.RateLimitMiddleware // 可选
	Metrics         *metrics.KYBMetrics
	HealthChecks    map[string]handler.Pinger
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	authMiddleware := middleware.NewAuthMiddleware(deps.ClientService)
	webhookMiddleware := middleware.NewWebhookSignatureMiddleware(deps.WebhookVerifier)

	verificationHandler := handler.NewVerificationHandler(deps.Verification)
	webhookHandler := handler.NewWebhookHandler()
	healthHandler := handler.NewHealthHandler(deps.HealthChecks)
	adminHandler := handler.NewAdminHandler(deps.ClientService)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		// 服务商回调不走 API 密钥认证
		api.POST("/kyb/webhook", webhookMiddleware.Verify(), webhookHandler.Receive)

		authed := api.Group("")
		authed.Use(authMiddleware.Authenticate())
		if deps.Metrics != nil {
			authed.Use(middleware.NewPrometheusMiddleware(deps.Metrics).Monitor())
		}
		if deps.RateLimiter != nil {
			authed.Use(deps.RateLimiter.RateLimit())
		}

		kyb := authed.Group("/kyb")
		{
			kyb.POST("/applicants", verificationHandler.CreateApplicant)
			kyb.POST("/applicants/:id/access-token", verificationHandler.IssueAccessToken)

			onboard := []gin.HandlerFunc{verificationHandler.Onboard}
			if deps.TaskQueue != nil && deps.TaskRepo != nil {
				asyncMiddleware := middleware.NewAsyncMiddleware(deps.TaskQueue, deps.TaskRepo)
				onboard = append([]gin.HandlerFunc{asyncMiddleware.HandleAsync()}, onboard...)
			}
			kyb.POST("/onboard", onboard...)
		}

		if deps.TaskRepo != nil {
			taskHandler := handler.NewTaskHandler(deps.TaskRepo)
			authed.GET("/tasks", taskHandler.ListTasks)
			authed.GET("/tasks/:task_id", taskHandler.GetTask)
			authed.GET("/tasks/:task_id/status", taskHandler.GetTaskStatus)
		}
	}

	// 仅内网访问
	admin := r.Group("/admin")
	{
		admin.POST("/clients", adminHandler.CreateClient)
		admin.GET("/clients", adminHandler.ListClients)
		admin.GET("/clients/:id", adminHandler.GetClient)
		admin.PUT("/clients/:id/status", adminHandler.UpdateClientStatus)
		admin.PUT("/clients/:id/qps", adminHandler.UpdateClientQPS)
		admin.DELETE("/clients/:id", adminHandler.DeleteClient)
		admin.GET("/clients/:id/calls", adminHandler.GetClientProviderCalls)
		admin.GET("/stats", adminHandler.GetStats)
	}

	return r
}
