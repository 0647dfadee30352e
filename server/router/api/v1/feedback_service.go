package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/cortex/store"
)

type createFeedbackRequest struct {
	TargetID   string           `json:"target_id"`
	TargetType store.EntityKind `json:"target_type"`
	UserID     string           `json:"user_id"`
	Rating     int32            `json:"rating"`
	Comments   string           `json:"comments"`
}

type updateFeedbackRequest struct {
	UserID   *string `json:"user_id"`
	Rating   *int32  `json:"rating"`
	Comments *string `json:"comments"`
}

func (s *APIV1Service) CreateFeedback(c echo.Context) error {
	var req createFeedbackRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	feedback, err := s.Store.CreateFeedback(c.Request().Context(), &store.Feedback{
		TargetID:   req.TargetID,
		TargetType: req.TargetType,
		UserID:     req.UserID,
		Rating:     req.Rating,
		Comments:   req.Comments,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, feedback)
}

func (s *APIV1Service) ListFeedback(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	find := &store.FindFeedback{
		TargetID: queryString(c, "target_id"),
		UserID:   queryString(c, "user_id"),
		Limit:    limit,
	}
	if kind := queryString(c, "target_type"); kind != nil {
		targetType := store.EntityKind(*kind)
		find.TargetType = &targetType
	}
	list, err := s.Store.ListFeedback(c.Request().Context(), find)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}

// UpdateFeedback keeps the stored value of every omitted field.
func (s *APIV1Service) UpdateFeedback(c echo.Context) error {
	var req updateFeedbackRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	feedback, err := s.Store.UpdateFeedback(c.Request().Context(), &store.UpdateFeedback{
		ID:       c.Param("id"),
		UserID:   req.UserID,
		Rating:   req.Rating,
		Comments: req.Comments,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, feedback)
}

func (s *APIV1Service) DeleteFeedback(c echo.Context) error {
	if err := s.Store.DeleteFeedback(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
