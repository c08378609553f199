package router

import (
	"github.com/gin-gonic/gin"
	"github.com/muse0509/axis-settlement/internal/config"
	"github.com/muse0509/axis-settlement/internal/extractor"
	"github.com/muse0509/axis-settlement/internal/handler"
	"github.com/muse0509/axis-settlement/internal/payout"
	"github.com/muse0509/axis-settlement/internal/store"
)

func Setup(st store.Store, ex *extractor.Extractor, idx handler.IndexSource, exec payout.Executor, cfg *config.Config) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "axis-settlement",
		})
	})

	// webhook 接入
	webhookHandler := handler.NewWebhookHandler(cfg.Webhook.Secret, ex, st, idx, exec)
	r.POST("/webhook", webhookHandler.HandleWebhook)

	// 结算状态查询
	settlementHandler := handler.NewSettlementHandler(st)
	r.GET("/settlements/:signature", settlementHandler.GetSettlement)

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
