package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"delivra_back_end/internal/services"
)

// respondError traduit une erreur métier typée en réponse HTTP avec son code
// stable. Tout le reste est une erreur serveur générique.
func respondError(c *gin.Context, err error) {
	var appErr *services.Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.Status, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}
	log.Printf("❌ Erreur interne: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
}

func currentUser(c *gin.Context) (userID, email string, ok bool) {
	userID = c.GetString("user_id")
	email = c.GetString("email")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return "", "", false
	}
	return userID, email, true
}
