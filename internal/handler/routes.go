package handler

import (
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/middleware"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// RegisterRoutes mounts every endpoint on e
func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", HealthCheck)
	e.GET("/metrics", MetricsHandler)

	auth := e.Group("/auth")
	auth.POST("/register", Register)
	auth.POST("/login", Login)
	auth.POST("/forgot-password", ForgotPassword)
	auth.POST("/reset-password", ResetPassword)
	auth.GET("/oauth/:provider/login", OAuthLogin)
	auth.GET("/oauth/:provider/callback", OAuthCallback)

	public := e.Group("/public")
	public.GET("/sites/:slug", GetPublicSite)
	public.POST("/sites/:slug/bookings", CreatePublicBooking)
	public.GET("/chat/:slug", GetChatWidget)
	public.POST("/chat/:slug/messages", SendChatMessage)
	public.GET("/chat/:slug/sessions/:session_id", GetChatTranscript)

	e.POST("/webhooks/stripe", StripeWebhook)

	// Protected routes
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	api.GET("/users/me", GetProfile)
	api.PATCH("/users/me", UpdateProfile)
	api.POST("/users/change-password", ChangePassword)
	api.POST("/auth/select-business", SelectBusiness)
	api.GET("/businesses", ListBusinesses)
	api.POST("/businesses", CreateBusiness)
	api.POST("/team/accept", AcceptInvite)

	api.GET("/notifications", ListNotifications)
	api.POST("/notifications/read-all", MarkAllNotificationsRead)
	api.POST("/notifications/:id/read", MarkNotificationRead)

	// Tenant routes need a business in the token; reads are open to every role
	t := api.Group("", middleware.RequireBusinessContext, middleware.RequireRole(model.RoleViewer))
	staff := middleware.RequireRole(model.RoleStaff)
	admin := middleware.RequireRole(model.RoleAdmin)

	t.GET("/business", GetBusiness)
	t.PATCH("/business", UpdateBusiness, admin)

	t.GET("/offerings", ListOfferings)
	t.GET("/offerings/:id", GetOffering)
	t.POST("/offerings", CreateOffering, staff)
	t.PATCH("/offerings/:id", UpdateOffering, staff)
	t.DELETE("/offerings/:id", DeleteOffering, admin)

	t.GET("/bookings", ListBookings)
	t.GET("/bookings/:id", GetBooking)
	t.POST("/bookings", CreateBooking, staff)
	t.PATCH("/bookings/:id/status", UpdateBookingStatus, staff)
	t.DELETE("/bookings/:id", DeleteBooking, admin)

	t.GET("/conversations", ListConversations)
	t.GET("/conversations/:id", GetConversation)
	t.POST("/conversations/:id/close", CloseConversation, staff)
	t.DELETE("/conversations/:id", DeleteConversation, admin)

	t.GET("/knowledge", ListKnowledge)
	t.GET("/knowledge/:id", GetKnowledge)
	t.POST("/knowledge", CreateKnowledge, staff)
	t.POST("/knowledge/import", ImportKnowledge, staff, echomiddleware.BodyLimit("11M"))
	t.PATCH("/knowledge/:id", UpdateKnowledge, staff)
	t.DELETE("/knowledge/:id", DeleteKnowledge, staff)

	t.GET("/campaigns", ListCampaigns)
	t.GET("/campaigns/:id", GetCampaign)
	t.POST("/campaigns", CreateCampaign, staff)
	t.POST("/campaigns/generate", GenerateCampaign, staff)
	t.PATCH("/campaigns/:id", UpdateCampaign, staff)
	t.POST("/campaigns/:id/schedule", ScheduleCampaign, staff)
	t.POST("/campaigns/:id/archive", ArchiveCampaign, staff)
	t.DELETE("/campaigns/:id", DeleteCampaign, staff)

	t.GET("/analytics", GetAnalytics)

	t.GET("/team", ListTeam)
	t.POST("/team/invite", InviteMember, admin)
	t.PATCH("/team/:id", UpdateMemberRole, admin)
	t.DELETE("/team/:id", RemoveMember, admin)

	t.GET("/billing/subscription", GetSubscription)
	t.POST("/billing/checkout", CreateSubscriptionCheckout, admin)
	t.POST("/billing/portal", CreatePortalSession, admin)
	t.POST("/billing/connect/onboard", OnboardConnect, admin)
	t.GET("/billing/connect/status", GetConnectStatus, admin)

	t.GET("/deployments", ListDeployments)
	t.GET("/deployments/latest", GetLatestDeployment)
	t.GET("/deployments/:id", GetDeployment)
	t.POST("/deployments", CreateDeployment, admin)
	t.POST("/deployments/domains", AddDomain, admin)
	t.GET("/deployments/domains/:domain", GetDomain)
	t.DELETE("/deployments/domains/:domain", RemoveDomain, admin)

	t.GET("/integrations", ListIntegrations)
	t.PUT("/integrations", ConnectIntegration, admin)
	t.DELETE("/integrations/:provider", DisconnectIntegration, admin)
}
