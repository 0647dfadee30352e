package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/cortex/store"
)

func entityRef(c echo.Context) (store.EntityRef, error) {
	ref := store.EntityRef{ID: c.Param("id"), Kind: store.EntityKind(c.Param("kind"))}
	if err := ref.Validate(); err != nil {
		return ref, toHTTPError(err)
	}
	return ref, nil
}

// UpsertTags returns the id of every requested tag name.
func (s *APIV1Service) UpsertTags(c echo.Context) error {
	var req tagNamesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ids, err := s.Store.UpsertTagsByName(c.Request().Context(), req.Tags)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, ids)
}

func (s *APIV1Service) ListTags(c echo.Context) error {
	tags, err := s.Store.ListTags(c.Request().Context(), &store.FindTag{Names: queryList(c, "name")})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, tags)
}

func (s *APIV1Service) FindTaggedEntities(c echo.Context) error {
	kind := store.EntityKind(c.QueryParam("kind"))
	if kind == "" {
		kind = store.EntityMemory
	}
	result, err := s.Store.FindEntitiesByTagNames(c.Request().Context(), kind, queryList(c, "name"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) ListEntityTags(c echo.Context) error {
	ref, err := entityRef(c)
	if err != nil {
		return err
	}
	tags, err := s.Store.ListTagsForEntity(c.Request().Context(), ref)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, tags)
}

func (s *APIV1Service) TagEntity(c echo.Context) error {
	ref, err := entityRef(c)
	if err != nil {
		return err
	}
	var req tagNamesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tags, err := s.Orchestrator.TagEntity(c.Request().Context(), ref, req.Tags)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, tags)
}

func (s *APIV1Service) UntagEntity(c echo.Context) error {
	ref, err := entityRef(c)
	if err != nil {
		return err
	}
	ok, err := s.Orchestrator.UntagEntity(c.Request().Context(), ref, queryList(c, "name"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: ok})
}

func (s *APIV1Service) AttachTag(c echo.Context) error {
	ref, err := entityRef(c)
	if err != nil {
		return err
	}
	ok, err := s.Store.AttachTag(c.Request().Context(), ref, c.Param("tagId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: ok})
}

func (s *APIV1Service) DetachTag(c echo.Context) error {
	ref, err := entityRef(c)
	if err != nil {
		return err
	}
	ok, err := s.Store.DetachTag(c.Request().Context(), ref, c.Param("tagId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: ok})
}
