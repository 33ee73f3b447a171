package api

import (
	"net/http"

	"github.com/Domenick1991/airreservations/internal/service/passengers"
	"github.com/gin-gonic/gin"
)

type PassengerHandler struct {
	service passengers.PassengerUseCase
}

func NewPassengerHandler(service passengers.PassengerUseCase) *PassengerHandler {
	return &PassengerHandler{service: service}
}

func (h *PassengerHandler) Register(router *gin.RouterGroup) {
	router.GET("/:id", h.get)
	router.PUT("/:id", h.update)
	router.PATCH("/:id", h.update)
	router.DELETE("/:id", h.remove)
}

func (h *PassengerHandler) get(c *gin.Context) {
	actor, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	p, err := h.service.GetPassenger(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPassengerResponse(p))
}

func (h *PassengerHandler) update(c *gin.Context) {
	actor, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input passengers.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdatePassenger(c.Request.Context(), actor, id, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMutationResponse(result))
}

func (h *PassengerHandler) remove(c *gin.Context) {
	actor, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.service.RemovePassenger(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := newMutationResponse(result)
	resp.Passenger = nil
	resp.Message = "passenger removed"
	c.JSON(http.StatusOK, resp)
}
