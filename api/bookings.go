package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	UserID          string          `json:"user_id" binding:"required"`
	Type            string          `json:"type" binding:"required"`
	ReferenceID     string          `json:"reference_id" binding:"required"`
	Quantity        int             `json:"quantity"`
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	TravelerDetails json.RawMessage `json:"traveler_details"`
	SpecialRequests string          `json:"special_requests"`
}

type bookingResponse struct {
	BookingID       string          `json:"booking_id"`
	UserID          string          `json:"user_id"`
	Type            string          `json:"type"`
	ReferenceID     string          `json:"reference_id"`
	ProviderName    string          `json:"provider_name,omitempty"`
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date,omitempty"`
	Quantity        int             `json:"quantity"`
	UnitPriceCents  int64           `json:"unit_price_cents"`
	TotalPriceCents int64           `json:"total_price_cents"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	TravelerDetails json.RawMessage `json:"traveler_details,omitempty"`
	SpecialRequests string          `json:"special_requests,omitempty"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

type timeframeResponse struct {
	Past    []bookingResponse `json:"past"`
	Current []bookingResponse `json:"current"`
	Future  []bookingResponse `json:"future"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.search)
	router.GET("/:id", h.get)
	router.PUT("/:id/confirm", h.confirm)
	router.DELETE("/:id", h.cancel)
}

func (h *BookingHandler) RegisterUserRoutes(router *gin.RouterGroup) {
	router.GET("/:userId/bookings", h.listByUser)
	router.GET("/:userId/bookings/timeframe", h.timeframe)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		badRequest(c, "start_date: "+err.Error())
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		badRequest(c, "end_date: "+err.Error())
		return
	}

	input := booking.ReserveInput{
		UserID:          req.UserID,
		Type:            domain.ListingType(req.Type),
		ReferenceID:     req.ReferenceID,
		Quantity:        req.Quantity,
		EndDate:         end,
		TravelerDetails: req.TravelerDetails,
		SpecialRequests: req.SpecialRequests,
	}
	if start != nil {
		input.StartDate = *start
	}

	created, err := h.service.Reserve(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) confirm(c *gin.Context) {
	b, err := h.service.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	b, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) search(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	filter.UserID = c.Query("user_id")

	found, err := h.service.SearchBookings(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponses(found))
}

func (h *BookingHandler) listByUser(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	found, err := h.service.ListUserBookings(c.Request.Context(), c.Param("userId"), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponses(found))
}

func (h *BookingHandler) timeframe(c *gin.Context) {
	tf, err := h.service.GetBookingsByTimeframe(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, timeframeResponse{
		Past:    toBookingResponses(tf.Past),
		Current: toBookingResponses(tf.Current),
		Future:  toBookingResponses(tf.Future),
	})
}

// filterFromQuery reads the optional type, status, from and to query parameters.
func filterFromQuery(c *gin.Context) (domain.BookingFilter, error) {
	var f domain.BookingFilter
	if t := c.Query("type"); t != "" {
		typ, err := domain.ParseListingType(t)
		if err != nil {
			return f, err
		}
		f.Type = typ
	}
	if s := c.Query("status"); s != "" {
		st, err := domain.ParseBookingStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = st
	}

	var err error
	if f.FromDate, err = parseDate(c.Query("from")); err != nil {
		return f, fmt.Errorf("from: %w", err)
	}
	if f.ToDate, err = parseDate(c.Query("to")); err != nil {
		return f, fmt.Errorf("to: %w", err)
	}
	return f, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return &t, nil
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		BookingID:       b.BookingID,
		UserID:          b.UserID,
		Type:            string(b.Type),
		ReferenceID:     b.ReferenceID,
		ProviderName:    b.ProviderName,
		StartDate:       b.StartDate.Format(time.DateOnly),
		Quantity:        b.Quantity,
		UnitPriceCents:  b.UnitPriceCents,
		TotalPriceCents: b.TotalPriceCents,
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		TravelerDetails: b.TravelerDetails,
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       b.UpdatedAt.Format(time.RFC3339),
	}
	if b.EndDate != nil {
		resp.EndDate = b.EndDate.Format(time.DateOnly)
	}
	return resp
}

func toBookingResponses(bookings []domain.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	return out
}
