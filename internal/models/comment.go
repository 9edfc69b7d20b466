package models

import "time"

// MaxCommentLength bounds the comment body.
const MaxCommentLength = 3000

type Comment struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	ContentType string    `gorm:"size:100;not null;index:idx_comment_target" json:"content_type"`
	ObjectPK    string    `gorm:"size:255;not null;index:idx_comment_target" json:"object_pk"`
	UserID      int       `gorm:"index" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID" json:"user"`
	UserName    string    `gorm:"size:50" json:"user_name"`
	UserEmail   string    `gorm:"size:254" json:"user_email"`
	UserURL     string    `json:"user_url,omitempty"`
	Body        string    `gorm:"type:text;not null" json:"comment"`
	SubmitDate  time.Time `gorm:"index" json:"submit_date"`
	IPAddress   string    `gorm:"size:45" json:"-"`
	IsPublic    bool      `gorm:"not null" json:"is_public"`
	IsRemoved   bool      `gorm:"not null" json:"is_removed"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsActive reports whether the comment can still be edited, deleted or fetched.
func (c *Comment) IsActive() bool {
	return c.IsPublic && !c.IsRemoved
}

func (c *Comment) OwnedBy(userID int) bool {
	return c.UserID != 0 && c.UserID == userID
}

// CommentRevision is the audit trail written alongside every comment save.
type CommentRevision struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	CommentID int       `gorm:"index;not null" json:"comment_id"`
	EditorID  int       `json:"editor_id"`
	Note      string    `gorm:"type:text" json:"note"`
	IsRemoved bool      `json:"is_removed"`
	CreatedAt time.Time `json:"created_at"`
}

// Submitted formats the submit date the way notes and messages refer to it.
func (c *Comment) Submitted() string {
	return c.SubmitDate.UTC().Format("Jan 2, 2006 15:04 MST")
}
