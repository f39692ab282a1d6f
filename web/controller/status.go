// Package controller exposes the read-only status HTTP API.
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xui-tools/xui-bot/web/service"
)

// StatusController serves health and observability endpoints. It never
// mutates anything.
type StatusController struct {
	panelService  *service.PanelService
	serverService service.ServerService
}

func NewStatusController(g *gin.RouterGroup, panelService *service.PanelService) *StatusController {
	c := &StatusController{panelService: panelService}
	c.initRouter(g)
	return c
}

func (c *StatusController) initRouter(g *gin.RouterGroup) {
	g.GET("/health", c.health)
	api := g.Group("/api")
	api.GET("/status", c.status)
	api.GET("/subscriptions", c.subscriptions)
}

func (c *StatusController) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (c *StatusController) status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"server":    c.serverService.GetStatus(),
		"lastCycle": c.panelService.LastStats(),
	})
}

func (c *StatusController) subscriptions(ctx *gin.Context) {
	counts, err := c.panelService.CountStates()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"states": counts})
}
