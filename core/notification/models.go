package notification

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smartcampus/campus/core"
)

// Types
const (
	TypeInfo         = "info"
	TypeAlert        = "alert"
	TypeReminder     = "reminder"
	TypeAnnouncement = "announcement"
)

var Types = []string{TypeInfo, TypeAlert, TypeReminder, TypeAnnouncement}

type Notification struct {
	ID        string    `json:"id"`
	User      string    `json:"user"` // recipient ID
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"` // UTC
}

// List is what the notification bell consumes.
type List struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

// CountUnread counts the unread notifications of ns.
func CountUnread(ns []Notification) int {
	var n int
	for _, notif := range ns {
		if !notif.IsRead {
			n++
		}
	}
	return n
}

// NewNotification contains information needed to notify one or many users.
type NewNotification struct {
	Title   string `json:"title" validate:"required,notblank,max=200"`
	Message string `json:"message" validate:"required,notblank,max=2000"`
	Type    string `json:"type" validate:"notiftype"`
	Link    string `json:"link" validate:"omitempty,max=255"`
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	nn.Type = core.CleanString(nn.Type, true /* lower */)
	nn.Link = core.CleanString(nn.Link)
	return validate.Struct(nn)
}
