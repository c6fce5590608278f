package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/brandon0824/DavinciCode/internal/service"
)

// HandleServiceError 将业务错误翻译为 HTTP 状态码。
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateRoom),
		errors.Is(err, service.ErrDuplicateUsername),
		errors.Is(err, service.ErrRoomFull),
		errors.Is(err, service.ErrRoomNotJoinable),
		errors.Is(err, service.ErrNotHost),
		errors.Is(err, service.ErrInsufficientPlayers):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled service error")
		ErrorResponse(c, http.StatusInternalServerError, "internal server error")
	}
}
