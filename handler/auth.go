package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kopakredit/custimport/middleware"
)

// Me returns the operator identity carried by the verified token.
// Login and token issuance live in the staff portal; this service
// only consumes its tokens.
func Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"username": middleware.GetOperator(c),
		"role":     middleware.GetRole(c),
	})
}
