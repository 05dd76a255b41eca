package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/rma-service/internal/teams"
)

type DeviceSearcher interface {
	SearchDevice(ctx context.Context, id, token string) teams.DeviceSearchResult
}

type TeamsHandler struct {
	search DeviceSearcher
}

func NewTeamsHandler(search DeviceSearcher) *TeamsHandler {
	return &TeamsHandler{search: search}
}

type teamsSearchRequest struct {
	DeviceID    string `json:"deviceId"`
	AccessToken string `json:"accessToken"`
}

// Search POST /api/v1/teams/search: поиск одного ID в чатах пользователя с его токеном.
// Сбой поиска не ошибка: он описан в поле error результата.
func (h *TeamsHandler) Search(c *gin.Context) {
	var req teamsSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body", Code: "VALIDATION_ERROR"})
		return
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Device ID is required", Code: "VALIDATION_ERROR"})
		return
	}
	if req.AccessToken == "" {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "Access token is required", Code: "AUTHENTICATION_ERROR"})
		return
	}
	c.JSON(http.StatusOK, h.search.SearchDevice(c.Request.Context(), deviceID, req.AccessToken))
}
