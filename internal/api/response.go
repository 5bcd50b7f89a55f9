package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"civicpulse.app/engagement/internal/common"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message})
}

// failWith maps a service error to a status code. Store failures are
// logged and reported without detail.
func failWith(c *gin.Context, err error) {
	switch {
	case common.IsNotFound(err):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrUnknownAction),
		errors.Is(err, common.ErrInvalidLimit),
		errors.Is(err, common.ErrInvalidID),
		errors.Is(err, common.ErrInvalidPetition):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, err.Error())
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		fail(c, http.StatusInternalServerError, "temporary failure, try again later")
	}
}
