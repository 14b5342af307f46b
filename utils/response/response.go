package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steadhac/finbot-ctf/services"
)

// Error sends a standardized error response
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// Success sends a standardized success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"data": data})
}

// ValidationError sends a response for validation errors
func ValidationError(c *gin.Context, errors map[string]string) {
	c.JSON(400, gin.H{"errors": errors})
}

// AppError maps a service error onto its HTTP status and typed body. Errors
// without a type are reported as internal.
func AppError(c *gin.Context, err error) {
	if appErr, ok := services.AsAppError(err); ok {
		c.JSON(appErr.StatusCode(), gin.H{"error": appErr.Message, "type": appErr.Type})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
