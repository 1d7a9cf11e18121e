package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/hierarchy"
	"github.com/pot-code/course-catalog/internal/infrastructure/validate"
)

// ContextModeKey echo context key of the hierarchy.Mode of a route
const ContextModeKey = "catalog.mode"

// WithMode bind mode to every request of a route group
func WithMode(mode hierarchy.Mode) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextModeKey, mode)
			return next(c)
		}
	}
}

// ModeOf mode bound by WithMode, browse when none
func ModeOf(c echo.Context) hierarchy.Mode {
	if mode, ok := c.Get(ContextModeKey).(hierarchy.Mode); ok {
		return mode
	}
	return hierarchy.ModeBrowse
}

// ListResponse ordered scope listing
type ListResponse struct {
	Mode     string      `json:"mode"`
	Editable bool        `json:"editable"`
	Items    interface{} `json:"items"`
}

// ReorderRequest complete new id order of one scope
type ReorderRequest struct {
	IDs []string `json:"ids" validate:"required"`
}

type CatalogHandler struct {
	hierarchyService hierarchy.HierarchyService
	validator        validate.Validator
}

func NewCatalogHandler(
	HierarchyService hierarchy.HierarchyService,
	Validator validate.Validator,
) *CatalogHandler {
	return &CatalogHandler{HierarchyService, Validator}
}

func list(c echo.Context, items interface{}) error {
	mode := ModeOf(c)
	return c.JSON(http.StatusOK, &ListResponse{Mode: mode.String(), Editable: mode.Editable(), Items: items})
}

func (ch *CatalogHandler) bindReorder(c echo.Context) ([]string, error) {
	req := new(ReorderRequest)
	if err := c.Bind(req); err != nil {
		return nil, err
	}
	if err := validate.Check(ch.validator, req); err != nil {
		return nil, err
	}
	return req.IDs, nil
}

func (ch *CatalogHandler) HandleListTopics(c echo.Context) error {
	return list(c, ch.hierarchyService.Topics())
}

func (ch *CatalogHandler) HandleGetTopic(c echo.Context) error {
	topic, err := ch.hierarchyService.Topic(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, topic)
}

func (ch *CatalogHandler) HandleCreateTopic(c echo.Context) error {
	in := new(hierarchy.CreateTopicInput)
	if err := c.Bind(in); err != nil {
		return err
	}
	topic, err := ch.hierarchyService.CreateTopic(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, topic)
}

func (ch *CatalogHandler) HandleUpdateTopic(c echo.Context) error {
	patch := new(domain.TopicPatch)
	if err := c.Bind(patch); err != nil {
		return err
	}
	topic, err := ch.hierarchyService.UpdateTopic(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, topic)
}

func (ch *CatalogHandler) HandleDeleteTopic(c echo.Context) error {
	if err := ch.hierarchyService.DeleteTopic(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (ch *CatalogHandler) HandleReorderTopics(c echo.Context) error {
	ids, err := ch.bindReorder(c)
	if err != nil {
		return err
	}
	topics, err := ch.hierarchyService.ReorderTopics(c.Request().Context(), ids)
	if err != nil {
		return err
	}
	return list(c, topics)
}

func (ch *CatalogHandler) HandleListContents(c echo.Context) error {
	return list(c, ch.hierarchyService.Contents(c.Param("id")))
}

func (ch *CatalogHandler) HandleGetContent(c echo.Context) error {
	content, err := ch.hierarchyService.Content(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, content)
}

func (ch *CatalogHandler) HandleCreateContent(c echo.Context) error {
	in := new(hierarchy.CreateContentInput)
	if err := c.Bind(in); err != nil {
		return err
	}
	content, err := ch.hierarchyService.CreateContent(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, content)
}

func (ch *CatalogHandler) HandleUpdateContent(c echo.Context) error {
	patch := new(domain.ContentPatch)
	if err := c.Bind(patch); err != nil {
		return err
	}
	content, err := ch.hierarchyService.UpdateContent(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, content)
}

func (ch *CatalogHandler) HandleDeleteContent(c echo.Context) error {
	if err := ch.hierarchyService.DeleteContent(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (ch *CatalogHandler) HandleReorderContents(c echo.Context) error {
	ids, err := ch.bindReorder(c)
	if err != nil {
		return err
	}
	contents, err := ch.hierarchyService.ReorderContents(c.Request().Context(), ids)
	if err != nil {
		return err
	}
	return list(c, contents)
}

func (ch *CatalogHandler) HandleListLessons(c echo.Context) error {
	return list(c, ch.hierarchyService.Lessons(c.Param("id")))
}

func (ch *CatalogHandler) HandleGetLesson(c echo.Context) error {
	lesson, err := ch.hierarchyService.Lesson(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lesson)
}

func (ch *CatalogHandler) HandleCreateLesson(c echo.Context) error {
	in := new(hierarchy.CreateLessonInput)
	if err := c.Bind(in); err != nil {
		return err
	}
	lesson, err := ch.hierarchyService.CreateLesson(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, lesson)
}

func (ch *CatalogHandler) HandleUpdateLesson(c echo.Context) error {
	patch := new(domain.LessonPatch)
	if err := c.Bind(patch); err != nil {
		return err
	}
	lesson, err := ch.hierarchyService.UpdateLesson(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lesson)
}

func (ch *CatalogHandler) HandleDeleteLesson(c echo.Context) error {
	if err := ch.hierarchyService.DeleteLesson(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (ch *CatalogHandler) HandleReorderLessons(c echo.Context) error {
	ids, err := ch.bindReorder(c)
	if err != nil {
		return err
	}
	lessons, err := ch.hierarchyService.ReorderLessons(c.Request().Context(), ids)
	if err != nil {
		return err
	}
	return list(c, lessons)
}
