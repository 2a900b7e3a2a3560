package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mentorspark/sessiond/internal/auth"
	"github.com/mentorspark/sessiond/internal/domain"
)

type tokenRequest struct {
	SessionName string `json:"sessionName" binding:"required,max=64"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	MeetingID string `json:"meetingId"`
}

// TokenHandler mints a signaling token for the calling client identity,
// scoped to the named session. Clients call it before dialing the
// signaling endpoint.
func TokenHandler(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sessionName is required"})
			return
		}
		userID := c.GetString("client_token")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no client identity"})
			return
		}

		token, err := issuer.Mint(domain.ParticipantID(userID), domain.RoomID(req.SessionName))
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("mint session token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token mint failed"})
			return
		}
		c.JSON(http.StatusOK, tokenResponse{
			Token:     token,
			UserID:    userID,
			MeetingID: req.SessionName,
		})
	}
}
