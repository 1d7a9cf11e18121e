package store

import (
	"github.com/pot-code/course-catalog/internal/domain"
)

type (
	// TopicStore topics, all in the root scope
	TopicStore = Store[domain.Topic, *domain.Topic]
	// ContentStore contents scoped by topic id
	ContentStore = Store[domain.Content, *domain.Content]
	// LessonStore lessons scoped by content id
	LessonStore = Store[domain.Lesson, *domain.Lesson]
)

// Catalog the three ordered stores of the Topic → Content → Lesson hierarchy
type Catalog struct {
	Topics   *TopicStore
	Contents *ContentStore
	Lessons  *LessonStore
}

// NewCatalog create an empty catalog, release it with Close
func NewCatalog(opts ...Option) *Catalog {
	return &Catalog{
		Topics:   New[domain.Topic, *domain.Topic](domain.KindTopic, opts...),
		Contents: New[domain.Content, *domain.Content](domain.KindContent, opts...),
		Lessons:  New[domain.Lesson, *domain.Lesson](domain.KindLesson, opts...),
	}
}

// RemoveTopic remove a topic and end the subscriptions scoped to its
// descendants. Descendant entities stay until the next hydration.
func (c *Catalog) RemoveTopic(id string) (domain.Topic, bool) {
	topic, ok := c.Topics.Remove(id)
	for _, content := range c.Contents.List(id) {
		c.Lessons.InvalidateScope(content.ID)
	}
	c.Contents.InvalidateScope(id)
	return topic, ok
}

// RemoveContent remove a content and end the lesson subscriptions scoped to it
func (c *Catalog) RemoveContent(id string) (domain.Content, bool) {
	content, ok := c.Contents.Remove(id)
	c.Lessons.InvalidateScope(id)
	return content, ok
}

// RemoveLesson remove a lesson
func (c *Catalog) RemoveLesson(id string) (domain.Lesson, bool) {
	return c.Lessons.Remove(id)
}

// Apply replace the whole catalog with snapshot, parents first
func (c *Catalog) Apply(snapshot *domain.Snapshot) error {
	if err := c.Topics.Replace(snapshot.Topics); err != nil {
		return err
	}
	if err := c.Contents.Replace(snapshot.Contents); err != nil {
		return err
	}
	return c.Lessons.Replace(snapshot.Lessons)
}

// Snapshot current content of the whole catalog
func (c *Catalog) Snapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Topics:   c.Topics.All(),
		Contents: c.Contents.All(),
		Lessons:  c.Lessons.All(),
	}
}

// Close end every subscription of the three stores
func (c *Catalog) Close() {
	c.Topics.Close()
	c.Contents.Close()
	c.Lessons.Close()
}
