package model

import "time"

const (
	RoleMember = "member"
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
)

type User struct {
	UID         string    `gorm:"primaryKey;size:128" json:"uid"`
	Role        string    `gorm:"size:16;not null;default:member;index" json:"role"`
	DisplayName string    `gorm:"size:255" json:"displayName"`
	PushToken   *string   `gorm:"column:push_token;size:512" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
