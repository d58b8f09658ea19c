package api

import (
	"net/http"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/service/listings"
	"github.com/gin-gonic/gin"
)

type ListingHandler struct {
	service listings.ListingUseCase
}

type createListingRequest struct {
	ID             string `json:"id" binding:"required"`
	ProviderName   string `json:"provider_name"`
	Title          string `json:"title"`
	Location       string `json:"location"`
	Capacity       int    `json:"capacity"`
	TotalCapacity  int    `json:"total_capacity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func NewListingHandler(service listings.ListingUseCase) *ListingHandler {
	return &ListingHandler{service: service}
}

func (h *ListingHandler) Register(router *gin.RouterGroup) {
	router.GET("/:type", h.list)
	router.GET("/:type/:id", h.get)
	router.POST("/:type", h.create)
	router.DELETE("/:type/:id", h.deactivate)
}

func (h *ListingHandler) list(c *gin.Context) {
	typ, ok := listingType(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), typ)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *ListingHandler) get(c *gin.Context) {
	typ, ok := listingType(c)
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), typ, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ListingHandler) create(c *gin.Context) {
	typ, ok := listingType(c)
	if !ok {
		return
	}
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	item, err := h.service.Create(c.Request.Context(), domain.InventoryItem{
		Type:           typ,
		ID:             req.ID,
		ProviderName:   req.ProviderName,
		Title:          req.Title,
		Location:       req.Location,
		Capacity:       req.Capacity,
		TotalCapacity:  req.TotalCapacity,
		UnitPriceCents: req.UnitPriceCents,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *ListingHandler) deactivate(c *gin.Context) {
	typ, ok := listingType(c)
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), typ, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func listingType(c *gin.Context) (domain.ListingType, bool) {
	typ, err := domain.ParseListingType(c.Param("type"))
	if err != nil {
		writeError(c, err)
		return "", false
	}
	return typ, true
}
