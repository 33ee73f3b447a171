package api

import (
	"net/http"
	"strconv"

	"github.com/Domenick1991/airreservations/internal/service/booking"
	"github.com/Domenick1991/airreservations/internal/service/passengers"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service    booking.BookingUseCase
	passengers passengers.PassengerUseCase
}

func NewBookingHandler(service booking.BookingUseCase, passengerService passengers.PassengerUseCase) *BookingHandler {
	return &BookingHandler{service: service, passengers: passengerService}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.POST("/:id/cancel", h.cancel)
	router.GET("/:id/passengers", h.listPassengers)
	router.POST("/:id/passengers", h.addPassenger)
}

func (h *BookingHandler) create(c *gin.Context) {
	actor, ok := actor(c)
	if !ok {
		return
	}
	var input booking.CreateBookingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), actor, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newBookingResponse(created))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	actor, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	canceled, err := h.service.CancelBooking(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(canceled))
}

func (h *BookingHandler) get(c *gin.Context) {
	actor, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	b, err := h.service.GetBooking(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(b))
}

func (h *BookingHandler) list(c *gin.Context) {
	actor, ok := actor(c)
	if !ok {
		return
	}
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n > booking.MaxPage {
			writeBadRequest(c, "invalid page")
			return
		}
		page = n
	}

	bookings, err := h.service.ListBookings(c.Request.Context(), actor, page)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, newBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp, "page": max(page, 1)})
}

func (h *BookingHandler) listPassengers(c *gin.Context) {
	actor, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	list, err := h.passengers.ListPassengers(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]passengerResponse, 0, len(list))
	for i := range list {
		resp = append(resp, newPassengerResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) addPassenger(c *gin.Context) {
	actor, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input passengers.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	result, err := h.passengers.AddPassenger(c.Request.Context(), actor, id, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newMutationResponse(result))
}
