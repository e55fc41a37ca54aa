package handlers

import (
	"net/http"

	"carnumbers/internal/common"
	"carnumbers/internal/services"

	"github.com/labstack/echo/v4"
)

type ReservationHandlers struct {
	reservations services.ReservationService
	availability services.AvailabilityService
}

func NewReservationHandlers(reservations services.ReservationService, availability services.AvailabilityService) *ReservationHandlers {
	return &ReservationHandlers{
		reservations: reservations,
		availability: availability,
	}
}

// ListReservations returns every reservation of the guild, by number.
func (h *ReservationHandlers) ListReservations(c echo.Context) error {
	_, guildID, _ := caller(c)

	list, err := h.reservations.ListByTenant(c.Request().Context(), guildID)
	if err != nil {
		return respondError(c, err, "reservations")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reservations": list,
		"count":        len(list),
	})
}

func (h *ReservationHandlers) GetReservation(c echo.Context) error {
	_, guildID, _ := caller(c)
	number, err := common.ParseCarNumber(c.Param("number"), "number")
	if err != nil {
		return common.SendValidationError(c, "number", err.Error())
	}

	res, err := h.reservations.Get(c.Request().Context(), guildID, number)
	if err != nil {
		return respondError(c, err, "Reservation")
	}
	return c.JSON(http.StatusOK, res)
}

type ClaimNumberRequest struct {
	Number           *int    `json:"car_number"`
	ClaimantName     *string `json:"claimant_name"`
	ExternalMemberID *int64  `json:"external_member_id"`
	ExternalName     *string `json:"external_name"`
}

// ClaimNumber reserves a number for the calling member.
func (h *ReservationHandlers) ClaimNumber(c echo.Context) error {
	userID, guildID, _ := caller(c)

	var req ClaimNumberRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request body")
	}
	if req.Number == nil {
		return common.SendValidationError(c, "car_number", "car_number is required")
	}
	if req.ExternalMemberID != nil && *req.ExternalMemberID <= 0 {
		return common.SendValidationError(c, "external_member_id", "external_member_id must be positive")
	}

	res, err := h.reservations.Claim(c.Request().Context(), &services.ClaimRequest{
		GuildID:          guildID,
		Number:           *req.Number,
		ClaimantID:       userID,
		ClaimantName:     req.ClaimantName,
		ExternalMemberID: req.ExternalMemberID,
		ExternalName:     req.ExternalName,
	})
	if err != nil {
		return respondError(c, err, "Reservation")
	}
	return c.JSON(http.StatusCreated, res)
}

// ReleaseNumber frees a number. Admin tokens may release any holder's number.
func (h *ReservationHandlers) ReleaseNumber(c echo.Context) error {
	userID, guildID, admin := caller(c)
	number, err := common.ParseCarNumber(c.Param("number"), "number")
	if err != nil {
		return common.SendValidationError(c, "number", err.Error())
	}

	released, err := h.reservations.Release(c.Request().Context(), guildID, number, userID, admin)
	if err != nil {
		return respondError(c, err, "Reservation")
	}
	if !released {
		return common.SendNotFoundError(c, "Reservation")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ReservationHandlers) ListMyReservations(c echo.Context) error {
	userID, guildID, _ := caller(c)

	list, err := h.reservations.ListByClaimant(c.Request().Context(), guildID, userID)
	if err != nil {
		return respondError(c, err, "reservations")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reservations": list,
		"count":        len(list),
	})
}

type LinkMemberRequest struct {
	ExternalMemberID int64   `json:"external_member_id"`
	ExternalName     *string `json:"external_name"`
}

// LinkMember attaches an external league identity to the caller's claims.
func (h *ReservationHandlers) LinkMember(c echo.Context) error {
	userID, guildID, _ := caller(c)

	var req LinkMemberRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request body")
	}
	if req.ExternalMemberID <= 0 {
		return common.SendValidationError(c, "external_member_id", "external_member_id must be positive")
	}

	updated, err := h.reservations.Link(c.Request().Context(), guildID, userID, req.ExternalMemberID, common.OptionalString(common.SafeString(req.ExternalName)))
	if err != nil {
		return respondError(c, err, "reservations")
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": updated})
}

// Available lists free numbers, optionally narrowed by range_start and range_end.
func (h *ReservationHandlers) Available(c echo.Context) error {
	_, guildID, _ := caller(c)
	ctx := c.Request().Context()

	start, end := c.QueryParam("range_start"), c.QueryParam("range_end")
	var (
		numbers []int
		err     error
	)
	if start != "" || end != "" {
		from, perr := common.ParseCarNumber(start, "range_start")
		if perr != nil {
			return common.SendValidationError(c, "range_start", perr.Error())
		}
		to, perr := common.ParseCarNumber(end, "range_end")
		if perr != nil {
			return common.SendValidationError(c, "range_end", perr.Error())
		}
		numbers, err = h.availability.AvailableBetween(ctx, guildID, from, to)
	} else {
		numbers, err = h.availability.Available(ctx, guildID)
	}
	if err != nil {
		return respondError(c, err, "availability")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"numbers": numbers,
		"ranges":  common.FormatNumberRanges(numbers),
		"count":   len(numbers),
	})
}
