package httpapi

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, alertH *AlertHandler, jwtSecret []byte) {
	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(jwtSecret))
	{
		alerts := api.Group("/alerts")
		{
			alerts.POST("/scan", alertH.Scan)
			alerts.POST("", alertH.CreateCustom)
			alerts.GET("", alertH.List)
			alerts.POST("/:id/read", alertH.MarkRead)
		}
		contracts := api.Group("/contracts")
		{
			contracts.POST("/:id/alerts", alertH.GenerateForContract)
		}
	}
}
