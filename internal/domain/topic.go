package domain

import "time"

// Topic top level of the catalog hierarchy
type Topic struct {
	ID            string    `json:"id"`
	Name          string    `json:"name" validate:"notblank"`
	Category      string    `json:"category"`
	Color         string    `json:"color"`
	CoverImageURL string    `json:"cover_image_url"`
	Order         int       `json:"order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (t *Topic) EntityID() string       { return t.ID }
func (t *Topic) ScopeKey() string       { return "" }
func (t *Topic) SortOrder() int         { return t.Order }
func (t *Topic) SetSortOrder(order int) { t.Order = order }
func (t *Topic) Created() time.Time     { return t.CreatedAt }
func (t *Topic) Touch(now time.Time)    { t.UpdatedAt = now }

// TopicPatch partial update, nil fields are left untouched
type TopicPatch struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,notblank"`
	Category      *string `json:"category,omitempty"`
	Color         *string `json:"color,omitempty"`
	CoverImageURL *string `json:"cover_image_url,omitempty"`
	Order         *int    `json:"order,omitempty"`
}

// Apply shallow-merge the set fields into t
func (p *TopicPatch) Apply(t *Topic) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.CoverImageURL != nil {
		t.CoverImageURL = *p.CoverImageURL
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
}

// Fields column name to value of every set field
func (p *TopicPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Category != nil {
		fields["category"] = *p.Category
	}
	if p.Color != nil {
		fields["color"] = *p.Color
	}
	if p.CoverImageURL != nil {
		fields["cover_image_url"] = *p.CoverImageURL
	}
	if p.Order != nil {
		fields["sort_order"] = *p.Order
	}
	return fields
}
