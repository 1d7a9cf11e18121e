package hierarchy

import (
	"context"
	"strings"
	"time"

	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/infrastructure/uuid"
	"github.com/pot-code/course-catalog/internal/infrastructure/validate"
	"github.com/pot-code/course-catalog/internal/store"
	"go.elastic.co/apm"
)

// HierarchyServiceImpl applies every write to the catalog first, then hands
// the remote mirror and the following hydration to the Mirror
type HierarchyServiceImpl struct {
	Catalog       *store.Catalog
	Mirror        Mirror
	UUIDGenerator uuid.Generator
	Validator     validate.Validator
	Now           func() time.Time
}

var _ HierarchyService = &HierarchyServiceImpl{}

// NewHierarchyService ...
func NewHierarchyService(
	Catalog *store.Catalog,
	Mirror Mirror,
	UUIDGenerator uuid.Generator,
	Validator validate.Validator,
) *HierarchyServiceImpl {
	return &HierarchyServiceImpl{
		Catalog:       Catalog,
		Mirror:        Mirror,
		UUIDGenerator: UUIDGenerator,
		Validator:     Validator,
		Now:           time.Now,
	}
}

// CreateTopic append a topic, or place it at in.Order
func (hs *HierarchyServiceImpl) CreateTopic(ctx context.Context, in *CreateTopicInput) (*domain.Topic, error) {
	apmSpan, _ := apm.StartSpan(ctx, "HierarchyServiceImpl.CreateTopic", "service")
	defer apmSpan.End()

	if err := validate.Check(hs.Validator, in); err != nil {
		return nil, err
	}
	id, err := hs.UUIDGenerator.Generate()
	if err != nil {
		return nil, err
	}
	now := hs.Now()
	topic := domain.Topic{
		ID:            id,
		Name:          strings.TrimSpace(in.Name),
		Category:      in.Category,
		Color:         in.Color,
		CoverImageURL: in.CoverImageURL,
		Order:         orderOr(in.Order, hs.Catalog.Topics.NextOrder("")),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := hs.Catalog.Topics.Insert(topic); err != nil {
		return nil, err
	}
	hs.reconcile("create_topic", func(ctx context.Context) error {
		return hs.Mirror.MirrorCreate(ctx, domain.KindTopic, topic)
	})
	return &topic, nil
}

// CreateContent append a content to an existing topic
func (hs *HierarchyServiceImpl) CreateContent(ctx context.Context, in *CreateContentInput) (*domain.Content, error) {
	apmSpan, _ := apm.StartSpan(ctx, "HierarchyServiceImpl.CreateContent", "service")
	defer apmSpan.End()

	if err := validate.Check(hs.Validator, in); err != nil {
		return nil, err
	}
	if _, err := hs.Catalog.Topics.Get(in.TopicID); err != nil {
		return nil, err
	}
	id, err := hs.UUIDGenerator.Generate()
	if err != nil {
		return nil, err
	}
	now := hs.Now()
	content := domain.Content{
		ID:                id,
		TopicID:           in.TopicID,
		Title:             strings.TrimSpace(in.Title),
		Description:       in.Description,
		CoverImageURL:     in.CoverImageURL,
		Difficulty:        in.Difficulty,
		EstimatedDuration: in.EstimatedDuration,
		Order:             orderOr(in.Order, hs.Catalog.Contents.NextOrder(in.TopicID)),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := hs.Catalog.Contents.Insert(content); err != nil {
		return nil, err
	}
	hs.reconcile("create_content", func(ctx context.Context) error {
		return hs.Mirror.MirrorCreate(ctx, domain.KindContent, content)
	})
	return &content, nil
}

// CreateLesson append a lesson to an existing content
func (hs *HierarchyServiceImpl) CreateLesson(ctx context.Context, in *CreateLessonInput) (*domain.Lesson, error) {
	apmSpan, _ := apm.StartSpan(ctx, "HierarchyServiceImpl.CreateLesson", "service")
	defer apmSpan.End()

	if err := validate.Check(hs.Validator, in); err != nil {
		return nil, err
	}
	if _, err := hs.Catalog.Contents.Get(in.ContentID); err != nil {
		return nil, err
	}
	id, err := hs.UUIDGenerator.Generate()
	if err != nil {
		return nil, err
	}
	now := hs.Now()
	lesson := domain.Lesson{
		ID:          id,
		ContentID:   in.ContentID,
		Title:       strings.TrimSpace(in.Title),
		YoutubeURL:  strings.TrimSpace(in.YoutubeURL),
		Description: in.Description,
		Order:       orderOr(in.Order, hs.Catalog.Lessons.NextOrder(in.ContentID)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := hs.Catalog.Lessons.Insert(lesson); err != nil {
		return nil, err
	}
	hs.reconcile("create_lesson", func(ctx context.Context) error {
		return hs.Mirror.MirrorCreate(ctx, domain.KindLesson, lesson)
	})
	return &lesson, nil
}

var errMissingPatch = &validate.ValidationError{
	Fields: []*validate.FieldError{validate.NewFieldError("patch", "patch body is required")},
}

// UpdateTopic patch a topic
func (hs *HierarchyServiceImpl) UpdateTopic(ctx context.Context, id string, patch *domain.TopicPatch) (*domain.Topic, error) {
	apmSpan, _ := apm.StartSpan(ctx, "HierarchyServiceImpl.UpdateTopic", "service")
	defer apmSpan.End()

	if patch == nil {
		return nil, errMissingPatch
	}
	if err := validate.Check(hs.Validator, patch); err != nil {
		return nil, err
	}
	topic, err := hs.Catalog.Topics.Patch(id, patch.Apply)
	if err != nil {
		return nil, err
	}
	fields := withUpdatedAt(patch.Fields(), topic.UpdatedAt)
	hs.reconcile("update_topic", func(ctx context.Context) error {
		return hs.Mirror.MirrorUpdate(ctx, domain.KindTopic, id, fields)
	})
	return &topic, nil
}

// UpdateContent patch a content, moving it requires the target topic to exist
func (hs *HierarchyServiceImpl) UpdateContent(ctx context.Context, id string, patch *domain.ContentPatch) (*domain.Content, error) {
	apmSpan, _ := apm.StartSpan(ctx, "HierarchyServiceImpl.UpdateContent", "service")
	defer apmSpan.End()

	if patch == nil {
		return nil, errMissingPatch
	}
	if err := validate.Check(hs.Validator, patch); err != nil {
		return nil, err
	}
	if patch.TopicID != nil {
		if _, err := hs.Catalog.Topics.Get(*patch.TopicID); err != nil {
			return nil, err
		}
	}
	content, err := hs.Catalog.Contents.Patch(id, patch.Apply)
	if err != nil {
		return nil, err
	}
	fields := withUpdatedAt(patch.Fields(), content.UpdatedAt)
	hs.reconcile("update_content", func(ctx context.Context) error {
		return hs.Mirror.MirrorUpdate(ctx, domain.KindContent, id, fields)
	})
	return &content, nil
}

// UpdateLesson patch a lesson, moving it requires the target content to exist
func (hs *HierarchyServiceImpl) UpdateLesson(ctx context.Context, id string, patch *domain.LessonPatch) (*domain.Lesson, error) {
	apmSpan, _ := apm.StartSpan(ctx, "HierarchyServiceImpl.UpdateLesson", "service")
	defer apmSpan.End()

	if patch == nil {
		return nil, errMissingPatch
	}
	if err := validate.Check(hs.Validator, patch); err != nil {
		return nil, err
	}
	if patch.ContentID != nil {
		if _, err := hs.Catalog.Contents.Get(*patch.ContentID); err != nil {
			return nil, err
		}
	}
	lesson, err := hs.Catalog.Lessons.Patch(id, patch.Apply)
	if err != nil {
		return nil, err
	}
	fields := withUpdatedAt(patch.Fields(), lesson.UpdatedAt)
	hs.reconcile("update_lesson", func(ctx context.Context) error {
		return hs.Mirror.MirrorUpdate(ctx, domain.KindLesson, id, fields)
	})
	return &lesson, nil
}

// DeleteTopic remove a topic; its contents and lessons stay until the
// remote drops them on the next hydration
func (hs *HierarchyServiceImpl) DeleteTopic(ctx context.Context, id string) error {
	apmSpan, _ := apm.StartSpan(ctx, "HierarchyServiceImpl.DeleteTopic", "service")
	defer apmSpan.End()

	hs.Catalog.RemoveTopic(id)
	hs.reconcile("delete_topic", func(ctx context.Context) error {
		return hs.Mirror.MirrorDelete(ctx, domain.KindTopic, id)
	})
	return nil
}

// DeleteContent remove a content
func (hs *HierarchyServiceImpl) DeleteContent(ctx context.Context, id string) error {
	apmSpan, _ := apm.StartSpan(ctx, "HierarchyServiceImpl.DeleteContent", "service")
	defer apmSpan.End()

	hs.Catalog.RemoveContent(id)
	hs.reconcile("delete_content", func(ctx context.Context) error {
		return hs.Mirror.MirrorDelete(ctx, domain.KindContent, id)
	})
	return nil
}

// DeleteLesson remove a lesson
func (hs *HierarchyServiceImpl) DeleteLesson(ctx context.Context, id string) error {
	apmSpan, _ := apm.StartSpan(ctx, "HierarchyServiceImpl.DeleteLesson", "service")
	defer apmSpan.End()

	hs.Catalog.RemoveLesson(id)
	hs.reconcile("delete_lesson", func(ctx context.Context) error {
		return hs.Mirror.MirrorDelete(ctx, domain.KindLesson, id)
	})
	return nil
}

// ReorderTopics ids is the complete new topic order
func (hs *HierarchyServiceImpl) ReorderTopics(ctx context.Context, ids []string) ([]domain.Topic, error) {
	apmSpan, _ := apm.StartSpan(ctx, "HierarchyServiceImpl.ReorderTopics", "service")
	defer apmSpan.End()

	topics, err := hs.Catalog.Topics.Reorder(ids)
	if err != nil || len(topics) == 0 {
		return topics, err
	}
	batch := make([]interface{}, 0, len(topics))
	for _, t := range topics {
		batch = append(batch, t)
	}
	hs.reconcile("reorder_topics", func(ctx context.Context) error {
		return hs.Mirror.MirrorUpsertBatch(ctx, domain.KindTopic, batch)
	})
	return topics, nil
}

// ReorderContents ids is the complete new order of one topic's contents,
// the topic is the parent of ids[0]
func (hs *HierarchyServiceImpl) ReorderContents(ctx context.Context, ids []string) ([]domain.Content, error) {
	apmSpan, _ := apm.StartSpan(ctx, "HierarchyServiceImpl.ReorderContents", "service")
	defer apmSpan.End()

	contents, err := hs.Catalog.Contents.Reorder(ids)
	if err != nil || len(contents) == 0 {
		return contents, err
	}
	batch := make([]interface{}, 0, len(contents))
	for _, c := range contents {
		batch = append(batch, c)
	}
	hs.reconcile("reorder_contents", func(ctx context.Context) error {
		return hs.Mirror.MirrorUpsertBatch(ctx, domain.KindContent, batch)
	})
	return contents, nil
}

// ReorderLessons ids is the complete new order of one content's lessons
func (hs *HierarchyServiceImpl) ReorderLessons(ctx context.Context, ids []string) ([]domain.Lesson, error) {
	apmSpan, _ := apm.StartSpan(ctx, "HierarchyServiceImpl.ReorderLessons", "service")
	defer apmSpan.End()

	lessons, err := hs.Catalog.Lessons.Reorder(ids)
	if err != nil || len(lessons) == 0 {
		return lessons, err
	}
	batch := make([]interface{}, 0, len(lessons))
	for _, l := range lessons {
		batch = append(batch, l)
	}
	hs.reconcile("reorder_lessons", func(ctx context.Context) error {
		return hs.Mirror.MirrorUpsertBatch(ctx, domain.KindLesson, batch)
	})
	return lessons, nil
}

func (hs *HierarchyServiceImpl) Topics() []domain.Topic {
	return hs.Catalog.Topics.List("")
}

func (hs *HierarchyServiceImpl) Contents(topicID string) []domain.Content {
	return hs.Catalog.Contents.List(topicID)
}

func (hs *HierarchyServiceImpl) Lessons(contentID string) []domain.Lesson {
	return hs.Catalog.Lessons.List(contentID)
}

func (hs *HierarchyServiceImpl) Topic(id string) (*domain.Topic, error) {
	t, err := hs.Catalog.Topics.Get(id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (hs *HierarchyServiceImpl) Content(id string) (*domain.Content, error) {
	c, err := hs.Catalog.Contents.Get(id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (hs *HierarchyServiceImpl) Lesson(id string) (*domain.Lesson, error) {
	l, err := hs.Catalog.Lessons.Get(id)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (hs *HierarchyServiceImpl) SubscribeTopics(cb store.Callback[domain.Topic]) *store.Subscription {
	return hs.Catalog.Topics.Subscribe("", cb)
}

func (hs *HierarchyServiceImpl) SubscribeContents(topicID string, cb store.Callback[domain.Content]) *store.Subscription {
	return hs.Catalog.Contents.Subscribe(topicID, cb)
}

func (hs *HierarchyServiceImpl) SubscribeLessons(contentID string, cb store.Callback[domain.Lesson]) *store.Subscription {
	return hs.Catalog.Lessons.Subscribe(contentID, cb)
}

// reconcile is skipped entirely without a backend
func (hs *HierarchyServiceImpl) reconcile(name string, mirror func(ctx context.Context) error) {
	if hs.Mirror == nil || !hs.Mirror.IsBackendAvailable() {
		return
	}
	hs.Mirror.Reconcile(name, mirror)
}

func orderOr(order *int, fallback int) int {
	if order != nil {
		return *order
	}
	return fallback
}

func withUpdatedAt(fields map[string]interface{}, updatedAt time.Time) map[string]interface{} {
	fields["updated_at"] = updatedAt
	return fields
}
