package models

import "encoding/json"

// Hint is a purchasable hint on a challenge, stored as JSON on the challenge row
type Hint struct {
	Cost int    `json:"cost"`
	Text string `json:"text"`
}

// Resource is an external learning resource linked from a challenge
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Challenge represents a security challenge that users can complete for points.
// Definitions are immutable after load: only Populate writes to this table.
type Challenge struct {
	ID             string  `gorm:"type:varchar(64);primary_key" json:"id"`
	Title          string  `gorm:"type:varchar(200);not null" json:"title"`
	Description    string  `gorm:"type:text;not null" json:"description"`
	Category       string  `gorm:"type:varchar(50);not null;index" json:"category"`
	Subcategory    *string `gorm:"type:varchar(50)" json:"subcategory"`
	Difficulty     string  `gorm:"type:varchar(20);not null" json:"difficulty"`
	Points         int     `gorm:"type:integer;not null" json:"points"`
	ImageURL       *string `gorm:"type:varchar(1000);column:image_url" json:"image_url"`
	Hints          string  `gorm:"type:text" json:"-"`
	Prerequisites  string  `gorm:"type:text" json:"-"`
	Resources      string  `gorm:"type:text" json:"-"`
	VerifierClass  string  `gorm:"type:varchar(100);not null;column:verifier_class" json:"-"`
	VerifierConfig *string `gorm:"type:text;column:verifier_config" json:"-"`
	IsActive       bool    `gorm:"not null;default:true;column:is_active" json:"is_active"`
	OrderIndex     int     `gorm:"type:integer;not null;default:0;column:order_index" json:"order_index"`
}

// HintList decodes the JSON-encoded hints column
func (c *Challenge) HintList() []Hint {
	var hints []Hint
	if c.Hints != "" {
		_ = json.Unmarshal([]byte(c.Hints), &hints)
	}
	return hints
}

// PrerequisiteList decodes the JSON-encoded prerequisites column
func (c *Challenge) PrerequisiteList() []string {
	var ids []string
	if c.Prerequisites != "" {
		_ = json.Unmarshal([]byte(c.Prerequisites), &ids)
	}
	return ids
}

// ResourceList decodes the JSON-encoded resources column
func (c *Challenge) ResourceList() []Resource {
	var resources []Resource
	if c.Resources != "" {
		_ = json.Unmarshal([]byte(c.Resources), &resources)
	}
	return resources
}
