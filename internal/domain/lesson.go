package domain

import "time"

// Lesson a single video, listed under a Content
type Lesson struct {
	ID          string    `json:"id"`
	ContentID   string    `json:"content_id" validate:"notblank"`
	Title       string    `json:"title" validate:"notblank"`
	YoutubeURL  string    `json:"youtube_url" validate:"notblank"`
	Description string    `json:"description"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (l *Lesson) EntityID() string       { return l.ID }
func (l *Lesson) ScopeKey() string       { return l.ContentID }
func (l *Lesson) SortOrder() int         { return l.Order }
func (l *Lesson) SetSortOrder(order int) { l.Order = order }
func (l *Lesson) Created() time.Time     { return l.CreatedAt }
func (l *Lesson) Touch(now time.Time)    { l.UpdatedAt = now }

// LessonPatch partial update, nil fields are left untouched
type LessonPatch struct {
	ContentID   *string `json:"content_id,omitempty" validate:"omitempty,notblank"`
	Title       *string `json:"title,omitempty" validate:"omitempty,notblank"`
	YoutubeURL  *string `json:"youtube_url,omitempty" validate:"omitempty,notblank"`
	Description *string `json:"description,omitempty"`
	Order       *int    `json:"order,omitempty"`
}

// Apply shallow-merge the set fields into l
func (p *LessonPatch) Apply(l *Lesson) {
	if p.ContentID != nil {
		l.ContentID = *p.ContentID
	}
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.YoutubeURL != nil {
		l.YoutubeURL = *p.YoutubeURL
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Order != nil {
		l.Order = *p.Order
	}
}

// Fields column name to value of every set field
func (p *LessonPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if p.ContentID != nil {
		fields["content_id"] = *p.ContentID
	}
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.YoutubeURL != nil {
		fields["youtube_url"] = *p.YoutubeURL
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Order != nil {
		fields["sort_order"] = *p.Order
	}
	return fields
}
