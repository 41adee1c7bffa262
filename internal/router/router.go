// Package router mounts every HTTP route on a gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/creatia-api/internal/handler"
	"github.com/noah-isme/creatia-api/internal/middleware"
	"github.com/noah-isme/creatia-api/internal/models"
	"github.com/noah-isme/creatia-api/internal/service"
	"github.com/noah-isme/creatia-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/creatia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/creatia-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Roles       *handler.RoleHandler
	Profile     *handler.ProfileHandler
	Tasks       *handler.TaskHandler
	ProjectTree *handler.ProjectTreeHandler
	Mail        *handler.MailHandler
	Chat        *handler.ChatHandler
	Reports     *handler.ReportHandler
	Files       *handler.FileHandler
	Metrics     *handler.MetricsHandler
}

// Options carries the cross-cutting dependencies of the route table.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Tokens         middleware.TokenValidator
	Audit          middleware.AuditWriter
	Metrics        *service.MetricsService
	Logger         *zap.Logger
}

// New builds the engine with middleware and routes installed.
func New(h Handlers, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	prefix := opts.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(prefix)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/register", h.Auth.Register)
	api.GET("/files/:token", h.Files.Download)
	api.GET("/project-tree", middleware.OptionalJWT(opts.Tokens), h.ProjectTree.List)

	authed := api.Group("")
	authed.Use(middleware.JWT(opts.Tokens))

	authed.GET("/auth/me", h.Auth.Me)
	authed.GET("/users", h.Users.List)

	authed.GET("/profile", h.Profile.Get)
	authed.PUT("/profile", h.Profile.Update)
	authed.POST("/profile/files", h.Profile.UploadFiles)

	tasks := authed.Group("/tasks")
	tasks.GET("", h.Tasks.List)
	tasks.POST("", h.Tasks.Create)
	tasks.POST("/:id/status", h.Tasks.SetStatus)
	tasks.POST("/:id/due", h.Tasks.UpdateDue)
	tasks.POST("/:id/edit", h.Tasks.Edit)
	tasks.POST("/:id/seen", h.Tasks.MarkSeen)
	tasks.POST("/:id/attach", h.Tasks.Attach)
	tasks.DELETE("/:id", middleware.Audit(opts.Audit, models.AuditActionTaskDelete, "tasks"), h.Tasks.Delete)

	tree := authed.Group("/project-tree", middleware.RequireRoles(models.RoleAdmin))
	tree.POST("", middleware.Audit(opts.Audit, models.AuditActionProjectNodeCreate, "project_nodes"), h.ProjectTree.Create)
	tree.POST("/:id", middleware.Audit(opts.Audit, models.AuditActionProjectNodeUpdate, "project_nodes"), h.ProjectTree.Update)
	tree.DELETE("/:id", middleware.Audit(opts.Audit, models.AuditActionProjectNodeDelete, "project_nodes"), h.ProjectTree.Delete)

	mails := authed.Group("/mails")
	mails.GET("", h.Mail.List)
	mails.POST("", h.Mail.Send)
	mails.POST("/bulk", h.Mail.Bulk)
	mails.GET("/unread_count", h.Mail.UnreadCount)
	mails.POST("/:id/read", h.Mail.MarkRead)

	chat := authed.Group("/chat")
	chat.GET("/messages", h.Chat.List)
	chat.POST("/messages", h.Chat.Post)
	chat.DELETE("/messages/:id", h.Chat.Delete)
	chat.POST("/read", h.Chat.MarkRead)
	chat.GET("/unread", h.Chat.Unread)

	admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/admin/users", h.Users.Create)
	admin.PATCH("/admin/users/:id", h.Users.Update)
	admin.DELETE("/admin/users/:id", h.Users.Delete)
	admin.GET("/roles", h.Roles.List)
	admin.POST("/roles", h.Roles.Create)
	admin.GET("/reports/tasks", h.Reports.TaskStats)
	admin.GET("/admin/metrics", h.Metrics.Summary)

	return r
}
