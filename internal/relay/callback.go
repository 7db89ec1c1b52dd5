package relay

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/frenqai/skyline/internal/metrics"
)

// handleAuthCallback lands the browser after the backend's OAuth exchange.
// The backend reports the result through query parameters; this handler
// only translates them into a dashboard redirect.
func (routes *relayRoutes) handleAuthCallback(contextGin *gin.Context) {
	const routeName = "auth.callback"

	if oauthError := contextGin.Query("error"); oauthError != "" {
		routes.record(routeName, metrics.OutcomeUpstreamError)
		contextGin.Redirect(http.StatusFound, "/?auth=error&message="+url.QueryEscape(oauthError))
		return
	}
	if token := contextGin.Query("token"); token != "" {
		routes.record(routeName, metrics.OutcomeSuccess)
		contextGin.Redirect(http.StatusFound, "/dashboard?token="+url.QueryEscape(token))
		return
	}
	routes.record(routeName, metrics.OutcomeBadRequest)
	contextGin.Redirect(http.StatusFound, "/?auth=failed")
}
