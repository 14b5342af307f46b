package models

// Badge rarities, ordered common < rare < epic < legendary
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Badge represents an earnable badge. The criterion class and config describe
// which pluggable criterion evaluates it; the engine itself treats them as
// opaque. Definitions are immutable after load.
type Badge struct {
	ID              string  `gorm:"type:varchar(64);primary_key" json:"id"`
	Title           string  `gorm:"type:varchar(200);not null" json:"title"`
	Description     string  `gorm:"type:text;not null" json:"description"`
	Category        string  `gorm:"type:varchar(50);not null" json:"category"`
	Rarity          string  `gorm:"type:varchar(20);not null;default:'common'" json:"rarity"`
	Points          int     `gorm:"type:integer;not null;default:0" json:"points"`
	IconURL         *string `gorm:"type:varchar(500);column:icon_url" json:"icon_url"`
	CriterionClass  string  `gorm:"type:varchar(100);not null;column:criterion_class" json:"-"`
	CriterionConfig *string `gorm:"type:text;column:criterion_config" json:"-"`
	IsActive        bool    `gorm:"not null;default:true;column:is_active" json:"is_active"`
	IsSecret        bool    `gorm:"not null;default:false;column:is_secret" json:"is_secret"`
}
