package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deepak445566/cv/internal/auth"
	"github.com/deepak445566/cv/internal/config"
	"github.com/deepak445566/cv/internal/entity"
	"github.com/deepak445566/cv/internal/handler"
	middlewarepkg "github.com/deepak445566/cv/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Auth         *handler.AuthHandler
	Users        *handler.UserAdminHandler
	Products     *handler.ProductsHandler
	Cart         *handler.CartHandler
	Addresses    *handler.AddressesHandler
	Orders       *handler.OrdersHandler
	OrderUpdates *handler.OrderUpdatesHandler
}

// Limiters holds the rate limiting middleware applied to sensitive routes.
type Limiters struct {
	Auth     echo.MiddlewareFunc
	Checkout echo.MiddlewareFunc
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, tokens *auth.TokenManager, limiters Limiters, handlers Handlers) {
	if limiters.Auth == nil {
		limiters.Auth = middlewarepkg.AuthRateLimiter(nil, cfg.RateLimitAuth, nil)
	}
	if limiters.Checkout == nil {
		limiters.Checkout = middlewarepkg.CheckoutRateLimiter(cfg.RateLimitCheckout)
	}

	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authGroup := e.Group("/auth")
	authGroup.POST("/register", handlers.Auth.Register, limiters.Auth)
	authGroup.POST("/login", handlers.Auth.Login, limiters.Auth)
	authGroup.POST("/refresh", handlers.Auth.Refresh, limiters.Auth)
	authGroup.POST("/logout", handlers.Auth.Logout)

	e.GET("/products", handlers.Products.List)
	e.GET("/products/:id", handlers.Products.Get)

	secured := e.Group("")
	secured.Use(middlewarepkg.JWT(tokens))

	secured.GET("/auth/me", handlers.Auth.Me)
	secured.POST("/auth/logout-all", handlers.Auth.LogoutAll)

	secured.GET("/cart", handlers.Cart.Get)
	secured.PUT("/cart", handlers.Cart.Replace)
	secured.DELETE("/cart", handlers.Cart.Clear)
	secured.POST("/cart/merge", handlers.Cart.Merge)
	secured.POST("/cart/items", handlers.Cart.AddItem)
	secured.PATCH("/cart/items/:product_id", handlers.Cart.SetItem)
	secured.DELETE("/cart/items/:product_id", handlers.Cart.RemoveItem)

	secured.GET("/addresses", handlers.Addresses.List)
	secured.POST("/addresses", handlers.Addresses.Create)
	secured.PATCH("/addresses/:id", handlers.Addresses.Update)
	secured.DELETE("/addresses/:id", handlers.Addresses.Delete)
	secured.POST("/addresses/:id/default", handlers.Addresses.SetDefault)

	secured.POST("/orders", handlers.Orders.Place, limiters.Checkout)
	secured.GET("/orders", handlers.Orders.ListMine)
	secured.GET("/orders/:id", handlers.Orders.Get)
	secured.POST("/orders/:id/cancel", handlers.Orders.Cancel)

	if handlers.OrderUpdates != nil {
		secured.GET("/ws/orders", handlers.OrderUpdates.Serve)
	}

	admin := secured.Group("/admin", middlewarepkg.RequireRole(entity.RoleAdmin))
	admin.GET("/users", handlers.Users.List)
	admin.POST("/users", handlers.Users.Create)
	admin.PATCH("/users/:id", handlers.Users.Update)
	admin.DELETE("/users/:id", handlers.Users.Delete)

	admin.GET("/products", handlers.Products.ListAdmin)
	admin.POST("/products", handlers.Products.Create)
	admin.POST("/products/import", handlers.Products.Import)
	admin.PATCH("/products/:id", handlers.Products.Update)
	admin.DELETE("/products/:id", handlers.Products.Delete)
	admin.POST("/products/:id/image", handlers.Products.UploadImage)

	admin.GET("/orders", handlers.Orders.ListAdmin)
	admin.PATCH("/orders/:id/status", handlers.Orders.UpdateStatus)
}
