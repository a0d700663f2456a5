package routes

import (
	"time"

	"libristack/internal/adapters/http/handlers"
	"libristack/internal/adapters/http/middleware"
	"libristack/internal/config"
	"libristack/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// Services are the application services the HTTP layer exposes
type Services struct {
	Auth      *services.AuthService
	Users     *services.UserService
	Catalog   *services.CatalogService
	Lending   *services.LendingService
	Contact   *services.ContactService
	BulkMail  *services.BulkMailService // nil when the task queue is disabled
	Dashboard *services.DashboardService

	// HealthCheck probes the database
	HealthCheck func() error
}

// Setup configures all routes for the application
func Setup(app *fiber.App, svc *Services, cfg *config.Config) {
	healthHandler := handlers.NewHealthHandler(cfg, svc.HealthCheck)
	authHandler := handlers.NewAuthHandler(svc.Auth, cfg)
	userHandler := handlers.NewUserHandler(svc.Users)
	bookHandler := handlers.NewBookHandler(svc.Catalog)
	lendingHandler := handlers.NewLendingHandler(svc.Lending)
	contactHandler := handlers.NewContactHandler(svc.Contact, svc.BulkMail)
	dashboardHandler := handlers.NewDashboardHandler(svc.Dashboard)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	setupAuthRoutes(apiV1.Group("/auth"), authHandler, cfg)
	setupBookRoutes(apiV1.Group("/books"), bookHandler, cfg)
	setupLendingRoutes(apiV1, lendingHandler, cfg)
	setupAdminRoutes(apiV1.Group("/admin"), userHandler, lendingHandler, contactHandler, dashboardHandler, cfg)

	apiV1.Post("/contact", middleware.StrictRateLimiter(), contactHandler.Submit)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, cfg *config.Config) {
	router.Use(middleware.NoCacheHeaders())

	// Public routes
	router.Post("/register", middleware.AuthRateLimiter(), handler.Register)
	router.Post("/verify/:token", handler.VerifyEmail)
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	// Protected routes
	router.Get("/me", middleware.AuthMiddleware(cfg), handler.Me)
	router.Post("/logout-all", middleware.AuthMiddleware(cfg), handler.LogoutAll)
}

// setupBookRoutes configures catalog routes. Reads are public, writes are admin only.
func setupBookRoutes(router fiber.Router, handler *handlers.BookHandler, cfg *config.Config) {
	router.Get("/", handler.ListBooks)
	router.Get("/languages", middleware.CacheControl(5*time.Minute), handler.Languages)
	router.Get("/:id", handler.GetBook)

	admin := []fiber.Handler{middleware.AuthMiddleware(cfg), middleware.AdminOnly()}
	router.Post("/", append(admin, handler.CreateBook)...)
	router.Put("/:id", append(admin, handler.UpdateBook)...)
	router.Delete("/:id", append(admin, handler.DeleteBook)...)
}

// setupLendingRoutes configures borrower routes
func setupLendingRoutes(router fiber.Router, handler *handlers.LendingHandler, cfg *config.Config) {
	auth := middleware.AuthMiddleware(cfg)
	noCache := middleware.NoCacheHeaders()

	router.Post("/borrow/:bookId", auth, handler.Borrow)
	router.Post("/return/:recordId", auth, handler.Return)
	router.Post("/renew/:recordId", auth, handler.Renew)

	user := router.Group("/user", auth, noCache)
	user.Get("/borrowed-books", handler.BorrowedBooks)
	user.Get("/history", handler.History)
	user.Get("/stats", handler.Stats)
}

// setupAdminRoutes configures admin routes
func setupAdminRoutes(
	router fiber.Router,
	userHandler *handlers.UserHandler,
	lendingHandler *handlers.LendingHandler,
	contactHandler *handlers.ContactHandler,
	dashboardHandler *handlers.DashboardHandler,
	cfg *config.Config,
) {
	router.Use(middleware.AuthMiddleware(cfg), middleware.AdminOnly(), middleware.NoCacheHeaders())

	router.Get("/dashboard", dashboardHandler.GetAdminDashboard)

	router.Patch("/return-book/:recordId", lendingHandler.AdminReturn)
	router.Get("/borrow-records", lendingHandler.BorrowRecords)

	router.Get("/users", userHandler.ListUsers)
	router.Patch("/users/:id/promote", userHandler.PromoteUser)
	router.Delete("/users/:id", userHandler.DeleteUser)

	router.Post("/bulk-email", middleware.StrictRateLimiter(), contactHandler.BulkEmail)
	router.Get("/contact-messages", contactHandler.List)
}
