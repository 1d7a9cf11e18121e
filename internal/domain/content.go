package domain

import "time"

// Content a course, listed under a Topic
type Content struct {
	ID                string    `json:"id"`
	TopicID           string    `json:"topic_id" validate:"notblank"`
	Title             string    `json:"title" validate:"notblank"`
	Description       string    `json:"description"`
	CoverImageURL     string    `json:"cover_image_url"`
	Difficulty        string    `json:"difficulty"`
	EstimatedDuration int       `json:"estimated_duration"` // minutes
	Order             int       `json:"order"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (c *Content) EntityID() string       { return c.ID }
func (c *Content) ScopeKey() string       { return c.TopicID }
func (c *Content) SortOrder() int         { return c.Order }
func (c *Content) SetSortOrder(order int) { c.Order = order }
func (c *Content) Created() time.Time     { return c.CreatedAt }
func (c *Content) Touch(now time.Time)    { c.UpdatedAt = now }

// ContentPatch partial update, nil fields are left untouched
type ContentPatch struct {
	TopicID           *string `json:"topic_id,omitempty" validate:"omitempty,notblank"`
	Title             *string `json:"title,omitempty" validate:"omitempty,notblank"`
	Description       *string `json:"description,omitempty"`
	CoverImageURL     *string `json:"cover_image_url,omitempty"`
	Difficulty        *string `json:"difficulty,omitempty"`
	EstimatedDuration *int    `json:"estimated_duration,omitempty" validate:"omitempty,min=0"`
	Order             *int    `json:"order,omitempty"`
}

// Apply shallow-merge the set fields into c
func (p *ContentPatch) Apply(c *Content) {
	if p.TopicID != nil {
		c.TopicID = *p.TopicID
	}
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.CoverImageURL != nil {
		c.CoverImageURL = *p.CoverImageURL
	}
	if p.Difficulty != nil {
		c.Difficulty = *p.Difficulty
	}
	if p.EstimatedDuration != nil {
		c.EstimatedDuration = *p.EstimatedDuration
	}
	if p.Order != nil {
		c.Order = *p.Order
	}
}

// Fields column name to value of every set field
func (p *ContentPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if p.TopicID != nil {
		fields["topic_id"] = *p.TopicID
	}
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.CoverImageURL != nil {
		fields["cover_image_url"] = *p.CoverImageURL
	}
	if p.Difficulty != nil {
		fields["difficulty"] = *p.Difficulty
	}
	if p.EstimatedDuration != nil {
		fields["estimated_duration"] = *p.EstimatedDuration
	}
	if p.Order != nil {
		fields["sort_order"] = *p.Order
	}
	return fields
}
