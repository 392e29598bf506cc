package models

import "time"

type Business struct {
	ID          uint       `json:"id" gorm:"primary_key"`
	Name        string     `json:"name" gorm:"not null;unique_index"`
	IsSuspended bool       `json:"is_suspended" gorm:"not null;default:false"`
	CreatedAt   time.Time  `json:"created_at"`
	Users       []*User    `json:"-" gorm:"foreignkey:BusinessID"`
	Products    []*Product `json:"-" gorm:"foreignkey:BusinessID"`
	Sales       []*Sale    `json:"-" gorm:"foreignkey:BusinessID"`
}
