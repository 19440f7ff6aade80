package middleware

import (
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dishevent/dishevent-server/response"
)

type RouteClass string

const (
	RoutePublic    RouteClass = "public"
	RouteProtected RouteClass = "protected"
	RouteAuthOnly  RouteClass = "auth-only"
)

type GuardAction string

const (
	ActionRender          GuardAction = "render"
	ActionRedirectToLogin GuardAction = "redirect-to-login"
	ActionRedirectToApp   GuardAction = "redirect-to-app"
)

const (
	LoginPath   = "/login"
	LandingPath = "/dashboard"
)

type GuardDecision struct {
	Class    RouteClass  `json:"class"`
	Action   GuardAction `json:"action"`
	Location string      `json:"location,omitempty"`
}

// ClassifyRoute sorts page paths into protected, auth-only and public.
func ClassifyRoute(p string) RouteClass {
	p = path.Clean("/" + p)
	switch {
	case p == LoginPath || p == "/signup":
		return RouteAuthOnly
	case p == "/dashboard" || strings.HasPrefix(p, "/dashboard/"),
		p == "/account" || strings.HasPrefix(p, "/account/"),
		p == "/events/new":
		return RouteProtected
	}
	// /events/:id/edit
	if parts := strings.Split(strings.Trim(p, "/"), "/"); len(parts) == 3 && parts[0] == "events" && parts[2] == "edit" {
		return RouteProtected
	}
	return RoutePublic
}

// DecideRoute resolves the guard state machine for one navigation.
func DecideRoute(p string, loggedIn bool) GuardDecision {
	class := ClassifyRoute(p)
	switch {
	case class == RouteProtected && !loggedIn:
		return GuardDecision{Class: class, Action: ActionRedirectToLogin, Location: LoginPath + "?next=" + url.QueryEscape(p)}
	case class == RouteAuthOnly && loggedIn:
		return GuardDecision{Class: class, Action: ActionRedirectToApp, Location: LandingPath}
	}
	return GuardDecision{Class: class, Action: ActionRender}
}

// RouteGuard handles page navigations that no API route matched. It redirects
// per DecideRoute and otherwise serves the page shell from staticDir, or 204
// when there is none.
func RouteGuard(resolver SessionResolver, cookieName, staticDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqPath := c.Request.URL.Path
		if strings.HasPrefix(reqPath, "/api/") {
			response.Abort(c, response.ErrCodeNotFound, "route not found")
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			response.Abort(c, response.ErrCodeNotFound, "route not found")
			return
		}

		loggedIn := false
		if tok := SessionToken(c, cookieName); tok != "" {
			if _, err := resolver.Resolve(tok); err == nil {
				loggedIn = true
			}
		}

		d := DecideRoute(reqPath, loggedIn)
		if d.Action != ActionRender {
			c.Redirect(http.StatusFound, d.Location)
			c.Abort()
			return
		}
		serveShell(c, staticDir, reqPath)
	}
}

func serveShell(c *gin.Context, staticDir, reqPath string) {
	if staticDir == "" {
		c.Status(http.StatusNoContent)
		return
	}
	file := filepath.Join(staticDir, filepath.FromSlash(path.Clean("/"+reqPath)))
	if fi, err := os.Stat(file); err == nil && !fi.IsDir() {
		c.File(file)
		return
	}
	c.File(filepath.Join(staticDir, "index.html"))
}
