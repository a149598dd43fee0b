package handler

import (
	"net/http"
	"strconv"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/billing"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/chatbot"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/deploy"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/events"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/llm"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/mailer"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/middleware"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/oauthlogin"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/cache"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/labstack/echo/v4"
)

// Deps are the services the handlers call besides the database
type Deps struct {
	Config    *config.Config
	Cache     cache.Store
	LLM       llm.Completer
	Chatbot   *chatbot.Service
	Billing   *billing.Service
	Deployer  *deploy.Deployer
	Mailer    mailer.Sender
	Publisher events.Publisher
	OAuth     oauthlogin.Registry
}

var deps Deps

// Init sets the handler dependencies. Call it once before serving.
func Init(d Deps) {
	if d.Config == nil {
		d.Config = &config.Config{}
	}
	if d.Mailer == nil {
		d.Mailer = mailer.LogSender{}
	}
	if d.Publisher == nil {
		d.Publisher = events.LogPublisher{}
	}
	deps = d
}

func frontendURL(path string) string {
	return deps.Config.Server.FrontendURL + path
}

// tenant returns the business and user of a tenant route; RequireBusinessContext
// has already rejected requests without them
func tenant(c echo.Context) (businessID, userID uint) {
	businessID, _ = middleware.GetBusinessID(c)
	userID, _ = middleware.GetUserID(c)
	return businessID, userID
}

func paramID(c echo.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func invalidID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
}

func internalError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}
