package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidQuantity, http.StatusBadRequest, "INVALID_QUANTITY"},
	{domain.ErrInvalidReference, http.StatusBadRequest, "INVALID_REFERENCE"},
	{domain.ErrInvalidDateRange, http.StatusBadRequest, "INVALID_DATE_RANGE"},
	{domain.ErrInvalidListing, http.StatusBadRequest, "INVALID_LISTING"},
	{domain.ErrBookingNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrListingNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrInsufficientCapacity, http.StatusConflict, "INSUFFICIENT_CAPACITY"},
	{domain.ErrAlreadyCancelled, http.StatusConflict, "ALREADY_CANCELLED"},
	{domain.ErrBookingNotCancellable, http.StatusConflict, "NOT_CANCELLABLE"},
	{domain.ErrBookingNotPending, http.StatusConflict, "NOT_PENDING"},
	{domain.ErrListingExists, http.StatusConflict, "LISTING_EXISTS"},
	{domain.ErrTransientStore, http.StatusInternalServerError, "TRANSIENT_STORE_ERROR"},
	{domain.ErrCommitOutcomeUnknown, http.StatusInternalServerError, "COMMIT_OUTCOME_UNKNOWN"},
}

// StatusFor maps a service error to its HTTP status and public error code.
func StatusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	_ = c.Error(err)

	resp := errorResponse{Error: err.Error(), Code: code}
	switch code {
	case "INTERNAL":
		resp.Error = "internal server error"
	case "TRANSIENT_STORE_ERROR":
		resp.Error = "temporarily unable to complete the request, retry later"
		resp.Retryable = true
	case "COMMIT_OUTCOME_UNKNOWN":
		resp.Error = "the request may or may not have been applied, check before retrying"
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "BAD_REQUEST"})
}
