package server

import (
	"context"
	"net/http"
	"time"

	"swiftfit/internal/auth"
	"swiftfit/internal/booking"
	"swiftfit/internal/class"
	"swiftfit/internal/config"
	"swiftfit/internal/credit"
	"swiftfit/internal/payment"
	"swiftfit/internal/reminder"
	"swiftfit/internal/upload"
	"swiftfit/internal/user"
	"swiftfit/internal/waitlist"

	"github.com/gin-gonic/gin"
)

// Handlers bundles the HTTP handlers of every domain package.
type Handlers struct {
	User     *user.Handler
	Class    *class.Handler
	Booking  *booking.Handler
	Waitlist *waitlist.Handler
	Credit   *credit.Handler
	Payment  *payment.Handler
	Reminder *reminder.Handler
	Upload   *upload.Handler
}

type Server struct {
	router *gin.Engine
	http   *http.Server
}

func New(cfg *config.Config, h Handlers, limiter Limiter, db Pinger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(corsMiddleware())

	router.GET("/health", Health(db))
	router.GET("/metrics", Metrics())

	api := router.Group("/")
	if limiter != nil {
		api.Use(RateLimitMiddleware(limiter))
	}
	registerRoutes(api, cfg, h)

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

func registerRoutes(r *gin.RouterGroup, cfg *config.Config, h Handlers) {
	authn := auth.AuthMiddleware(cfg.JWTSecret)
	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleInstructor)
	admin := auth.RequireRole(auth.RoleAdmin)

	public := r.Group("/auth")
	{
		public.POST("/register", h.User.Register)
		public.POST("/login", h.User.Login)
		public.POST("/refresh", h.User.RefreshToken)
	}

	verification := r.Group("/api/auth")
	{
		verification.POST("/send-verification", h.User.SendVerification)
		verification.GET("/verify-email-custom", h.User.VerifyEmail)
	}

	// Gateway callbacks are authenticated by signature, not by token.
	r.POST("/payments/notifications", h.Credit.GatewayNotification)

	cron := r.Group("/cron", auth.CronSecret(cfg.CronSecret))
	{
		cron.GET("/expire-credits", h.Credit.ExpireCredits)
		cron.GET("/process-renewals", h.Credit.ProcessRenewals)
		cron.GET("/send-reminders", h.Reminder.Dispatch)
	}

	protected := r.Group("/", authn)
	{
		protected.GET("/me", h.User.GetMe)

		protected.GET("/class-types", h.Class.ListTypes)
		protected.GET("/classes", h.Class.List)
		protected.GET("/classes/:id", h.Class.Get)

		protected.POST("/bookings", h.Booking.Create)
		protected.GET("/bookings", h.Booking.ListMine)
		protected.POST("/bookings/:id/cancel", h.Booking.Cancel)

		protected.POST("/waitlist", h.Waitlist.Join)
		protected.GET("/waitlist", h.Waitlist.ListMine)
		protected.DELETE("/waitlist/:id", h.Waitlist.Leave)

		protected.GET("/students/:id/credits", h.Credit.GetStudentCredits)
		protected.GET("/purchases", h.Credit.ListPurchases)
		protected.POST("/purchases/checkout", h.Credit.Checkout)
		protected.POST("/memberships/:id/toggle-renewal", h.Credit.ToggleRenewal)
		protected.GET("/packages", h.Credit.ListPackages)
		protected.GET("/memberships", h.Credit.ListMemberships)

		protected.GET("/payments", h.Payment.ListPayments)
		protected.GET("/payment-methods", h.Payment.ListMethods)
		protected.POST("/payment-methods", h.Payment.AddMethod)
		protected.DELETE("/payment-methods/:id", h.Payment.RemoveMethod)
	}

	staffOnly := r.Group("/", authn, staff)
	{
		staffOnly.POST("/class-types", h.Class.CreateType)
		staffOnly.POST("/classes", h.Class.Create)
		staffOnly.POST("/classes/:id/cancel", h.Class.Cancel)
		staffOnly.GET("/classes/:id/bookings", h.Booking.ListForClass)
		staffOnly.GET("/classes/:id/waitlist", h.Waitlist.ListForClass)

		staffOnly.PUT("/bookings/:id/attendance", h.Booking.MarkAttendance)
		staffOnly.POST("/attendance", h.Booking.BulkAttendance)
		staffOnly.POST("/waitlist/promote", h.Waitlist.Promote)

		staffOnly.GET("/class-reminders/due", h.Reminder.Due)
		staffOnly.POST("/class-reminders/schedule", h.Reminder.Schedule)
		staffOnly.POST("/class-reminders/mark-sent", h.Reminder.MarkSent)
	}

	adminOnly := r.Group("/", authn, admin)
	{
		adminOnly.POST("/packages", h.Credit.CreatePackage)
		adminOnly.POST("/memberships", h.Credit.CreateMembership)
		adminOnly.POST("/memberships/process-renewals", h.Credit.ProcessRenewals)
		adminOnly.POST("/purchases/grant", h.Credit.Grant)
		adminOnly.GET("/admin/payments", h.Payment.ListAllPayments)

		adminOnly.POST("/upload", h.Upload.Upload)
		adminOnly.DELETE("/upload", h.Upload.Delete)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP; it returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
