package contacts

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/notewell/crmbridge/pkg/utils"
)

// Register routes for the contacts module
func RegisterRoutes(g *gin.RouterGroup, cfg *utils.Config) {
	// Make api key validator
	apiKey := cfg.Get("API_KEY")
	if apiKey == "" {
		log.Fatal("[CONTACTS]: API_KEY not set in environment")
	}

	// Create base group for contact routes
	group := g.Group("/contacts")
	group.Use(apiKeyHandler(apiKey))

	group.POST("/search", SearchContacts)
	group.GET("/:id", GetContact)
	group.PATCH("/:id", UpdateContact)
	group.POST("/:id/suggestions", ReconcileSuggestions)
	group.POST("/:id/suggestions/apply", ApplySuggestions)
	group.POST("/:id/suggest", SuggestFromNotes)
}

// apiKeyHandler rejects requests without the expected X-API-KEY header
func apiKeyHandler(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-API-KEY") != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "fail", "message": "invalid api key"})
			return
		}
		c.Next()
	}
}
