package router

import (
	"github.com/bpo/cashclosing/internal/interfaces/http/handler"
)

// ClosingRoutes builds the /closings group. Static segments are registered
// before the :id routes they share a prefix with.
func ClosingRoutes(h *handler.ClosingHandler) *DomainGroup {
	g := NewDomainGroup("closings", "/closings")
	g.POST("", h.CreateDraft).
		GET("", h.List).
		POST("/submit", h.Submit).
		POST("/preview", h.Preview).
		GET("/calendar", h.Calendar).
		POST("/attachments/upload-url", h.CreateUploadURL).
		GET("/:id", h.GetByID).
		PUT("/:id", h.UpdateDraft).
		POST("/:id/submit", h.SubmitExisting).
		POST("/:id/transitions", h.Transition).
		GET("/:id/thread", h.ListThread).
		POST("/:id/thread", h.AppendMessage).
		GET("/:id/attachments/:attachmentId/download-url", h.GetDownloadURL)
	return g
}

// SystemRoutes builds the /system group
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	g := NewDomainGroup("system", "/system")
	g.GET("/info", h.GetSystemInfo).
		GET("/ping", h.Ping)
	return g
}
