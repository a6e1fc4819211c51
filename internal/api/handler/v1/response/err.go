package response

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Err struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

func (e *Err) Error() string {
	return e.Message
}

func NewErr(statusCode int, message string) *Err {
	return &Err{
		StatusCode: statusCode,
		Message:    message,
	}
}

func ErrBadRequest(err error) *Err {
	return NewErr(http.StatusBadRequest, err.Error())
}

func ErrWrongCredentials(err error) *Err {
	zap.L().Warn("wrong credentials", zap.Error(err))

	return NewErr(http.StatusUnauthorized, "wrong credentials")
}

func ErrUnauthorized(message string) *Err {
	return NewErr(http.StatusUnauthorized, message)
}

func ErrPermissionDenied(err error) *Err {
	return NewErr(http.StatusForbidden, err.Error())
}

func ErrNotFound(what, key string, value any) *Err {
	return NewErr(http.StatusNotFound, fmt.Sprintf("%v not found by %v (%v)", what, key, value))
}

func ErrConflict(err error) *Err {
	return NewErr(http.StatusConflict, err.Error())
}

func ErrInternalServerError(err error) *Err {
	zap.L().Error("internal server error", zap.Error(err))

	return NewErr(http.StatusInternalServerError, "internal server error")
}

func RenderErr(ctx *gin.Context, err *Err) {
	ctx.AbortWithStatusJSON(err.StatusCode, err)
}
