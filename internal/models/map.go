package models

import (
	"strconv"
	"time"
)

// MapData holds the geometry attached to a page. Comments attach to it under
// the "maps.mapdata" type.
type MapData struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	PageID    int       `gorm:"uniqueIndex" json:"page_id"`
	Page      Page      `gorm:"foreignKey:PageID" json:"-"`
	Geom      string    `gorm:"type:text" json:"geom"`
	Length    float64   `json:"length"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MapData) TableName() string {
	return "map_data"
}

func (m *MapData) ContentType() string { return "maps.mapdata" }
func (m *MapData) PK() string { return strconv.Itoa(m.ID) }
func (m *MapData) String() string { return "Map for page " + strconv.Itoa(m.PageID) }
