package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"

	"bikes-api/config"
	"bikes-api/controllers"
	"bikes-api/middleware"
	"bikes-api/repositories"
	"bikes-api/services"
	"bikes-api/views"
)

// Dependencies is everything the router needs from main.
type Dependencies struct {
	Config   *config.Config
	Log      *logrus.Logger
	DB       *gorm.DB
	Sessions services.SessionStore
	Mailer   services.Mailer
	Tracer   trace.TracerProvider
}

// NewRouter builds the HTTP handler for the whole app. The engine is wrapped
// in the method override so HTML forms can reach PATCH, PUT and DELETE routes.
func NewRouter(deps Dependencies) (http.Handler, error) {
	renderer, err := views.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load views")
	}
	tp := deps.Tracer
	if tp == nil {
		tp = noop.NewTracerProvider()
	}

	authService := services.NewAuthService(repositories.NewUserRepository(deps.DB), deps.Mailer, deps.Config.AppURL, deps.Log)
	sessionService := services.NewSessionService(deps.Sessions, deps.Config.SessionSecret)

	bikeController := controllers.NewBikeController(repositories.NewBikeRepository(deps.DB))
	sessionController := controllers.NewSessionController(authService, sessionService)
	registrationController := controllers.NewRegistrationController(authService, sessionService)
	passwordController := controllers.NewPasswordController(authService, sessionService)
	pageController := controllers.NewPageController()

	r := gin.New()
	r.HTMLRender = renderer
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(deps.Log),
		middleware.Tracing(tp),
		middleware.SecurityHeaders(),
		middleware.DetectFormat(),
		middleware.ErrorHandler(),
		middleware.LoadSession(sessionService, authService),
	)

	r.GET("/ping", pageController.Ping)
	r.StaticFS("/assets", views.Static())
	r.GET("/", pageController.Unprotected)

	// JSON requests skip the gate, so the listing stays public.
	gate := middleware.RequireHTMLSession()
	for _, path := range []string{"/bikes", "/bikes.json"} {
		r.GET(path, gate, bikeController.Index)
		r.POST(path, gate, bikeController.Create)
	}
	bikes := r.Group("/bikes", gate)
	{
		bikes.GET("/new", bikeController.New)
		bikes.GET("/:id", bikeController.Show)
		bikes.GET("/:id/edit", bikeController.Edit)
		bikes.PATCH("/:id", bikeController.Update)
		bikes.PUT("/:id", bikeController.Update)
		bikes.DELETE("/:id", bikeController.Destroy)
	}

	guest := middleware.RequireNoSession()
	users := r.Group("/users")
	{
		users.GET("/sign_in", guest, sessionController.New)
		users.POST("/sign_in",
			middleware.RateLimit(deps.Config.SignInRatePerMinute, deps.Config.SignInBurst),
			guest, sessionController.Create)
		users.DELETE("/sign_out", sessionController.Destroy)
		users.GET("/sign_out", sessionController.Destroy)

		users.GET("/sign_up", guest, registrationController.New)

		users.GET("/password/new", guest, passwordController.New)
		users.POST("/password", guest, passwordController.Create)
		users.GET("/password/edit", guest, passwordController.Edit)
		users.PATCH("/password", guest, passwordController.Update)
		users.PUT("/password", guest, passwordController.Update)
	}
	r.POST("/users", guest, registrationController.Create)

	r.NoRoute(pageController.NoRoute)

	return middleware.MethodOverride(r), nil
}
