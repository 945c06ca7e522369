package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type verifyAccessTokenRequest struct {
	AccessToken string `json:"access_token" binding:"required"`
}

//	@Summary		Verify access token
//	@Description	Verify an access token and return its claims
//	@Tags			tokens
//	@Accept			json
//	@Produce		json
//	@Param			request	body		verifyAccessTokenRequest	true	"Access token"
//	@Success		200		{object}	token.Payload				"Token claims"
//	@Failure		401		"Token is invalid or expired"
//	@Router			/tokens/verify [post]
func (server *Server) verifyAccessToken(c *gin.Context) {
	var req verifyAccessTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	payload, err := server.tokenMaker.VerifyToken(req.AccessToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse(err))
		return
	}

	c.JSON(http.StatusOK, payload)
}

//	@Summary		Health check
//	@Description	Report service and database health
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string	"Service is healthy"
//	@Failure		503	"Database unreachable"
//	@Router			/health [get]
func (server *Server) checkHealth(c *gin.Context) {
	if err := server.dbStore.Ping(c); err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
