package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-api/internal/handler"
	"github.com/iliyamo/storefront-api/internal/metrics"
	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/notify"
)

// Deps carries everything the route table needs.  ProductCache and
// RateLimit may be pass-through middleware when Redis is disabled.
type Deps struct {
	JWTSecret    string
	Users        middleware.RoleReader
	Auth         *handler.AuthHandler
	Products     *handler.ProductHandler
	Categories   *handler.CategoryHandler
	Addresses    *handler.AddressHandler
	Orders       *handler.OrderHandler
	Hub          *notify.Hub
	Ready        echo.HandlerFunc
	ProductCache echo.MiddlewareFunc
	RateLimit    echo.MiddlewareFunc
}

// Register installs the validator and every route.
func Register(e *echo.Echo, d Deps) {
	if d.ProductCache == nil {
		d.ProductCache = passThrough
	}
	if d.RateLimit == nil {
		d.RateLimit = passThrough
	}
	e.Validator = handler.NewValidator()
	RegisterRoutes(e, d.Ready)
	registerUser(e, d)
	registerCatalog(e, d)
	registerAddresses(e, d)
	registerOrders(e, d)
	registerAdmin(e, d)
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// RegisterRoutes registers the unauthenticated probes and the metrics
// endpoint.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// registerUser registers /api/user.  register, login and check read no
// session; the rest run behind JWTAuth.
func registerUser(e *echo.Echo, d Deps) {
	g := e.Group("/api/user", d.RateLimit)
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/check", d.Auth.Check)

	auth := g.Group("", middleware.JWTAuth(d.JWTSecret))
	auth.GET("/get-userDetails", d.Auth.Details)
	auth.PUT("/update-profile", d.Auth.UpdateProfile)
}

// registerCatalog registers products and categories.  Reads are public
// and the product listing is cached; writes need an admin.
func registerCatalog(e *echo.Echo, d Deps) {
	admin := []echo.MiddlewareFunc{middleware.JWTAuth(d.JWTSecret), middleware.RequireAdmin(d.Users)}

	p := e.Group("/api/products")
	p.GET("", d.Products.List, d.ProductCache)
	p.GET("/:id", d.Products.Get, d.ProductCache)
	p.POST("", d.Products.Create, admin...)
	p.PUT("/:id", d.Products.Update, admin...)
	p.DELETE("/:id", d.Products.Delete, admin...)

	c := e.Group("/api/categories")
	c.GET("", d.Categories.List)
	c.POST("", d.Categories.Create, admin...)
}

// registerAddresses registers the caller-scoped address book.
func registerAddresses(e *echo.Echo, d Deps) {
	g := e.Group("/api/addresses", middleware.JWTAuth(d.JWTSecret))
	g.POST("", d.Addresses.Create)
	g.GET("", d.Addresses.List)
	g.PUT("/:id", d.Addresses.Update)
	g.DELETE("/:id", d.Addresses.Delete)
}

// registerOrders registers checkout and order management.  The static
// /paypal routes are declared before /:id so they never reach the id
// handlers.
func registerOrders(e *echo.Echo, d Deps) {
	g := e.Group("/api/orders", middleware.JWTAuth(d.JWTSecret))
	adminOnly := middleware.RequireAdmin(d.Users)

	g.POST("/paypal", d.Orders.CreatePayPal, d.RateLimit)
	g.POST("/paypal/capture", d.Orders.Capture, d.RateLimit)
	g.GET("/paypal/cancel", d.Orders.Cancel)

	g.POST("", d.Orders.Create, d.RateLimit)
	g.GET("", d.Orders.List)
	g.GET("/:id", d.Orders.Get)
	g.PUT("/:id/status", d.Orders.UpdateStatus)
	g.PUT("/:id", d.Orders.Update, adminOnly)
	g.DELETE("/:id", d.Orders.Delete, adminOnly)
}

// registerAdmin registers user management and the live order feed.
func registerAdmin(e *echo.Echo, d Deps) {
	gate := []echo.MiddlewareFunc{middleware.JWTAuth(d.JWTSecret), middleware.RequireAdmin(d.Users)}
	g := e.Group("/api/admin", gate...)
	g.GET("/users", d.Auth.ListUsers)
	g.PUT("/users/:id", d.Auth.AdminUpdateUser)
	g.DELETE("/users/:id", d.Auth.AdminDeleteUser)

	// The websocket handshake may carry the token as ?token=, which must be
	// lifted into the header before JWTAuth runs.
	if d.Hub != nil {
		e.GET("/api/admin/orders/ws", d.Hub.ServeWS, append([]echo.MiddlewareFunc{middleware.TokenFromQuery}, gate...)...)
	}
}
