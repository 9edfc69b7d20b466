package models

import (
	"strconv"
	"time"
)

// Page is a wiki page. Comments attach to it under the "pages.page" type.
type Page struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Page) ContentType() string { return "pages.page" }
func (p *Page) PK() string { return strconv.Itoa(p.ID) }
func (p *Page) String() string { return p.Name }
