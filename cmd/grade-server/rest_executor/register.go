package restexecutor

import "github.com/gin-gonic/gin"

// Register registers the handler
type Register interface {
	Register(*gin.Engine)
}
