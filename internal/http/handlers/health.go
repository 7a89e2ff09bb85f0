package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Liveness is the unconditional k8s liveness probe target — it reports
// process health, not backend connectivity (Status reports that).
func Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
