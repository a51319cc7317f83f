package public

import (
	handlershared "github.com/parcel-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "user_id")
}

func isAdminUser(c *gin.Context) bool {
	return handlershared.GetContextBool(c, "user_is_admin")
}
