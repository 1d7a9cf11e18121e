package hierarchy

import (
	"context"
	"fmt"

	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/store"
)

// Mode decides whether a consumer may mutate the catalog
type Mode int

// consumer modes
const (
	ModeBrowse Mode = iota
	ModeAdmin
)

// ParseMode parse "admin" or "browse", an empty string is browse
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "browse":
		return ModeBrowse, nil
	case "admin":
		return ModeAdmin, nil
	}
	return ModeBrowse, fmt.Errorf("unknown mode: %s", s)
}

func (m Mode) String() string {
	if m == ModeAdmin {
		return "admin"
	}
	return "browse"
}

// Editable whether mutation affordances are exposed
func (m Mode) Editable() bool {
	return m == ModeAdmin
}

// CreateTopicInput new topic, Order nil appends to the end
type CreateTopicInput struct {
	Name          string `json:"name" validate:"notblank"`
	Category      string `json:"category"`
	Color         string `json:"color"`
	CoverImageURL string `json:"cover_image_url"`
	Order         *int   `json:"order,omitempty"`
}

// CreateContentInput new content under TopicID
type CreateContentInput struct {
	TopicID           string `json:"topic_id" validate:"notblank"`
	Title             string `json:"title" validate:"notblank"`
	Description       string `json:"description"`
	CoverImageURL     string `json:"cover_image_url"`
	Difficulty        string `json:"difficulty"`
	EstimatedDuration int    `json:"estimated_duration" validate:"min=0"`
	Order             *int   `json:"order,omitempty"`
}

// CreateLessonInput new lesson under ContentID
type CreateLessonInput struct {
	ContentID   string `json:"content_id" validate:"notblank"`
	Title       string `json:"title" validate:"notblank"`
	YoutubeURL  string `json:"youtube_url" validate:"notblank"`
	Description string `json:"description"`
	Order       *int   `json:"order,omitempty"`
}

// Mirror the remote side a HierarchyService reconciles with
type Mirror interface {
	IsBackendAvailable() bool
	MirrorCreate(ctx context.Context, kind domain.Kind, entity interface{}) error
	MirrorUpdate(ctx context.Context, kind domain.Kind, id string, fields map[string]interface{}) error
	MirrorDelete(ctx context.Context, kind domain.Kind, id string) error
	MirrorUpsertBatch(ctx context.Context, kind domain.Kind, entities []interface{}) error
	Reconcile(name string, mirror func(ctx context.Context) error)
}

// HierarchyService the only entry point that mutates the catalog
type HierarchyService interface {
	CreateTopic(ctx context.Context, in *CreateTopicInput) (*domain.Topic, error)
	CreateContent(ctx context.Context, in *CreateContentInput) (*domain.Content, error)
	CreateLesson(ctx context.Context, in *CreateLessonInput) (*domain.Lesson, error)

	UpdateTopic(ctx context.Context, id string, patch *domain.TopicPatch) (*domain.Topic, error)
	UpdateContent(ctx context.Context, id string, patch *domain.ContentPatch) (*domain.Content, error)
	UpdateLesson(ctx context.Context, id string, patch *domain.LessonPatch) (*domain.Lesson, error)

	DeleteTopic(ctx context.Context, id string) error
	DeleteContent(ctx context.Context, id string) error
	DeleteLesson(ctx context.Context, id string) error

	ReorderTopics(ctx context.Context, ids []string) ([]domain.Topic, error)
	ReorderContents(ctx context.Context, ids []string) ([]domain.Content, error)
	ReorderLessons(ctx context.Context, ids []string) ([]domain.Lesson, error)

	Topics() []domain.Topic
	Contents(topicID string) []domain.Content
	Lessons(contentID string) []domain.Lesson
	Topic(id string) (*domain.Topic, error)
	Content(id string) (*domain.Content, error)
	Lesson(id string) (*domain.Lesson, error)

	SubscribeTopics(cb store.Callback[domain.Topic]) *store.Subscription
	SubscribeContents(topicID string, cb store.Callback[domain.Content]) *store.Subscription
	SubscribeLessons(contentID string, cb store.Callback[domain.Lesson]) *store.Subscription
}
