package v1

import (
	"github.com/gin-gonic/gin"
)

// EditRouteHandler serves the edit lifecycle of one document kind.
type EditRouteHandler interface {
	OpenEdit(c *gin.Context)
	GetEdit(c *gin.Context)
	CloseEdit(c *gin.Context)
	SetHeader(c *gin.Context)

	LoadAll(c *gin.Context)
	AddProduct(c *gin.Context)
	SetCounted(c *gin.Context)
	AssignLot(c *gin.Context)
	DeleteRows(c *gin.Context)
	ResetRows(c *gin.Context)

	Save(c *gin.Context)
	Validate(c *gin.Context)
	Confirm(c *gin.Context)
	Actualize(c *gin.Context)
}

// SessionRouteHandler serves the browser of stored sessions.
type SessionRouteHandler interface {
	List(c *gin.Context)
	Count(c *gin.Context)
	Statuses(c *gin.Context)
	Get(c *gin.Context)
	Rows(c *gin.Context)
	Cancel(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterEditRoutes registers the edit, row and workflow routes.
// Workflow POSTs run behind idempotency when it is configured.
func RegisterEditRoutes(group *gin.RouterGroup, handler EditRouteHandler, idempotent ...gin.HandlerFunc) {
	group.POST("", handler.OpenEdit)
	group.GET("/:editId", handler.GetEdit)
	group.DELETE("/:editId", handler.CloseEdit)
	group.PUT("/:editId/header", handler.SetHeader)

	rows := group.Group("/:editId/rows")
	rows.POST("/all", handler.LoadAll)
	rows.POST("/product", handler.AddProduct)
	rows.PUT("/:handle/counted", handler.SetCounted)
	rows.PUT("/:handle/lot", handler.AssignLot)
	rows.DELETE("", handler.DeleteRows)
	rows.POST("/reset", handler.ResetRows)

	workflow := group.Group("/:editId", idempotent...)
	workflow.POST("/save", handler.Save)
	workflow.POST("/validate", handler.Validate)
	workflow.POST("/confirm", handler.Confirm)
	workflow.POST("/actualize", handler.Actualize)
}

// RegisterSessionRoutes registers the session browser routes.
func RegisterSessionRoutes(group *gin.RouterGroup, handler SessionRouteHandler, idempotent ...gin.HandlerFunc) {
	group.GET("", handler.List)
	group.GET("/count", handler.Count)
	group.GET("/statuses", handler.Statuses)
	group.GET("/:id", handler.Get)
	group.GET("/:id/rows", handler.Rows)
	group.DELETE("/:id", handler.Delete)
	cancel := append(append([]gin.HandlerFunc{}, idempotent...), handler.Cancel)
	group.POST("/:id/cancel", cancel...)
}
