package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tableflow/reservation-app/kds"
)

var upgrader = websocket.Upgrader{
	// Origin is left open: dashboards connect from varying dev hosts and
	// the /ws group already requires a valid staff token.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// DashboardWSHandler -> websocket endpoint pushing table and reservation
// updates to staff dashboards in real time.
func DashboardWSHandler(c *gin.Context) {
	roleInterface, exists := c.Get("role")
	if !exists {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	role := roleInterface.(string)

	if role != "staff" && role != "admin" {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	kds.RegisterClient(ws, role)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	kds.UnregisterClient(ws)
}
