package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/everhighit/coach-api/internal/platform/apierr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
	// Status is the provider or store HTTP status behind a 502, when there was one.
	Status int `json:"status,omitempty"`
}

// RespondError writes err as an ErrorBody. Errors that are not *apierr.Error become 500 server_exception.
func RespondError(c *gin.Context, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	status := http.StatusInternalServerError
	body := ErrorBody{Error: apierr.CodeInternal, Detail: err.Error()}
	if ae, ok := apierr.As(err); ok {
		if ae.Status != 0 {
			status = ae.Status
		}
		if ae.Code != "" {
			body.Error = ae.Code
		}
		body.Status = ae.UpstreamStatus
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
