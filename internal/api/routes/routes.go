// internal/api/routes/routes.go
package routes

import (
	"kol-campaign-api-server/config"
	"kol-campaign-api-server/internal/api/handlers"
	"kol-campaign-api-server/internal/api/middleware"
	"kol-campaign-api-server/internal/auth"
	"kol-campaign-api-server/internal/metrics"
	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/ratelimit"
	"kol-campaign-api-server/internal/service"
	"kol-campaign-api-server/internal/socket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the components the router hands to its handlers.
type Deps struct {
	Config   config.Config
	Services *service.Services
	Tokens   *auth.TokenManager
	Hub      *socket.Hub
	Metrics  *metrics.Metrics
	Limiter  ratelimit.Limiter
	Checks   map[string]handlers.Check
	Log      *zap.Logger
}

// SetupRouter builds the gin engine with every route of the API.
func SetupRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.AllowAll{}
	}

	router := gin.New()
	router.Use(middleware.Recovery(d.Log), middleware.RequestLogger(d.Log))
	router.Use(cors.New(corsConfig(d.Config.Server.AllowedOrigins)))
	if d.Metrics != nil {
		router.Use(d.Metrics.Middleware())
		router.GET("/metrics", d.Metrics.Handler())
	}

	svc := d.Services
	healthHandler := &handlers.HealthHandler{Checks: d.Checks}
	authHandler := &handlers.AuthHandler{Users: svc.Users}
	userHandler := &handlers.UserHandler{Users: svc.Users}
	clientHandler := &handlers.ClientHandler{Clients: svc.Clients}
	areaHandler := &handlers.DiseaseAreaHandler{DiseaseAreas: svc.DiseaseAreas}
	hcpHandler := &handlers.HcpHandler{Hcps: svc.Hcps}
	campaignHandler := &handlers.CampaignHandler{Campaigns: svc.Campaigns, Exports: svc.Exports, Payments: svc.Payments}
	surveyHandler := &handlers.SurveyHandler{Surveys: svc.Surveys}
	responseHandler := &handlers.ResponseHandler{Responses: svc.Responses}
	nominationHandler := &handlers.NominationHandler{Nominations: svc.Nominations}
	paymentHandler := &handlers.PaymentHandler{Payments: svc.Payments}
	settingsHandler := &handlers.SettingsHandler{Settings: svc.Settings}
	dashboardHandler := &handlers.DashboardHandler{Dashboard: svc.Dashboard}
	webSocketHandler := &handlers.WebSocketHandler{
		Hub: d.Hub, Tokens: d.Tokens, Log: d.Log, AllowedOrigins: d.Config.Server.AllowedOrigins,
	}

	router.GET("/healthz", healthHandler.Healthz)

	throttle := func(c *gin.Context) { c.Next() }
	if n := d.Config.RateLimit.LoginPerMinute; n > 0 {
		throttle = ratelimit.Middleware(d.Limiter, ratelimit.PerMinute(n), ratelimit.ByClientIP, d.Log)
	}
	staff := middleware.Authorize(models.RoleSuperAdmin, models.RoleAdmin)
	superadmin := middleware.Authorize(models.RoleSuperAdmin)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		// === Public routes ===
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/login", throttle, authHandler.Login)
			authRoutes.GET("/me", middleware.Authenticate(d.Tokens), authHandler.Me)
		}

		surveys := apiV1.Group("/surveys/:token")
		surveys.Use(throttle)
		{
			surveys.GET("", surveyHandler.GetSurvey)
			surveys.POST("/start", surveyHandler.StartSurvey)
			surveys.POST("/submit", surveyHandler.SubmitSurvey)
		}

		// === Authenticated routes ===
		// Client users reach the read routes below; the services scope what they see.
		authed := apiV1.Group("")
		authed.Use(middleware.Authenticate(d.Tokens))

		users := authed.Group("/users")
		users.Use(staff)
		{
			users.GET("", userHandler.ListUsers)
			users.POST("", userHandler.CreateUser)
			users.GET("/:id", userHandler.GetUser)
			users.PUT("/:id", userHandler.UpdateUser)
		}

		clients := authed.Group("/clients")
		{
			clients.GET("", staff, clientHandler.ListClients)
			clients.POST("", staff, clientHandler.CreateClient)
			clients.GET("/:id", clientHandler.GetClient)
			clients.PUT("/:id", staff, clientHandler.UpdateClient)
			clients.DELETE("/:id", staff, clientHandler.DeleteClient)
		}

		areas := authed.Group("/disease-areas")
		{
			areas.GET("", areaHandler.ListDiseaseAreas)
			areas.POST("", staff, areaHandler.CreateDiseaseArea)
			areas.PUT("/:id", staff, areaHandler.UpdateDiseaseArea)
			areas.DELETE("/:id", staff, areaHandler.DeleteDiseaseArea)
		}

		hcps := authed.Group("/hcps")
		hcps.Use(staff)
		{
			hcps.GET("", hcpHandler.ListHcps)
			hcps.POST("", hcpHandler.CreateHcp)
			hcps.POST("/bulk-specialty", hcpHandler.BulkSpecialty)
			hcps.POST("/import", hcpHandler.ImportHcps)
			hcps.GET("/:id", hcpHandler.GetHcp)
			hcps.PUT("/:id", hcpHandler.UpdateHcp)
			hcps.DELETE("/:id", hcpHandler.DeleteHcp)
		}

		campaigns := authed.Group("/campaigns")
		{
			campaigns.GET("", campaignHandler.ListCampaigns)
			campaigns.POST("", staff, campaignHandler.CreateCampaign)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.PUT("/:id", staff, campaignHandler.UpdateCampaign)
			campaigns.DELETE("/:id", staff, campaignHandler.DeleteCampaign)
			campaigns.POST("/:id/status", staff, campaignHandler.UpdateStatus)
			campaigns.GET("/:id/hcps", campaignHandler.ListHcps)
			campaigns.POST("/:id/hcps", staff, campaignHandler.AssignHcps)
			campaigns.DELETE("/:id/hcps/:hcpId", staff, campaignHandler.RemoveHcp)
			campaigns.POST("/:id/reminders", staff, campaignHandler.SendReminders)
			campaigns.GET("/:id/export", campaignHandler.ExportCSV)
			campaigns.POST("/:id/export", campaignHandler.UploadExport)
			campaigns.GET("/:id/kols", campaignHandler.Kols)
			campaigns.GET("/:id/payments/summary", campaignHandler.PaymentSummary)
		}

		responses := authed.Group("/survey-responses")
		{
			responses.GET("", responseHandler.ListResponses)
			responses.GET("/:id", responseHandler.GetResponse)
			responses.PUT("/:id/status", staff, responseHandler.UpdateStatus)
		}

		nominations := authed.Group("/nominations")
		nominations.Use(staff)
		{
			nominations.GET("", nominationHandler.ListNominations)
			nominations.PUT("/:id/review", nominationHandler.Review)
		}

		payments := authed.Group("/payments")
		payments.Use(staff)
		{
			payments.GET("", paymentHandler.ListPayments)
			payments.GET("/:id", paymentHandler.GetPayment)
			payments.POST("/:id/status", paymentHandler.UpdateStatus)
		}

		settings := authed.Group("/settings")
		{
			settings.GET("", staff, settingsHandler.GetSettings)
			settings.PUT("", superadmin, settingsHandler.UpdateSettings)
		}

		authed.GET("/dashboard/stats", dashboardHandler.Stats)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After", "Content-Disposition"}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
