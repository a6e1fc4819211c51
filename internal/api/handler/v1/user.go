package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tixera/tixera-api/internal/api/handler/v1/response"
)

type UserHandler struct {
	svc UserService
}

func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{
		svc: svc,
	}
}

// HandleGetMe godoc
// @Summary      Get the authenticated user
// @Tags         users
// @Produce      json
// @Success      200  {object}  domain.User
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /users/me [get]
// @Security BearerAuth
func (h *UserHandler) HandleGetMe(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.svc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	ctx.JSON(http.StatusOK, user)
}

// HandleGetPointHistory godoc
// @Summary      Get the authenticated user's point ledger
// @Description  Returns every earn, spend and refund entry, newest first.
// @Tags         users
// @Produce      json
// @Success      200  {array}   domain.PointTransaction
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /users/me/points [get]
// @Security BearerAuth
func (h *UserHandler) HandleGetPointHistory(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.svc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	history, err := h.svc.GetPointHistory(ctx.Request.Context(), user.ID)
	if err != nil {
		err = fmt.Errorf("v1.HandleGetPointHistory -> h.svc.GetPointHistory -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, history)
}
