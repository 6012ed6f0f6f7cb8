package models

import (
	"strings"
	"time"
)

type Role string

const (
	Student Role = "student"
	Admin   Role = "admin"
)

// ParseRole принимает только известные роли.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case Student:
		return Student, true
	case Admin:
		return Admin, true
	}
	return "", false
}

type Account struct {
	ID                 int64     `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	RegistrationNumber *string   `db:"registration_number" json:"registrationNumber,omitempty"`
	Email              string    `db:"email" json:"email"`
	PasswordHash       string    `db:"password_hash" json:"-"`
	IDCardImage        *string   `db:"id_card_image" json:"idCardImage,omitempty"`
	IsApproved         bool      `db:"is_approved" json:"isApproved"`
	Role               Role      `db:"role" json:"role"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

func (a *Account) IsAdmin() bool { return a != nil && a.Role == Admin }

// RegNo возвращает номер зачётки или пустую строку для админов.
func (a *Account) RegNo() string {
	if a == nil || a.RegistrationNumber == nil {
		return ""
	}
	return *a.RegistrationNumber
}

// NewAccount — данные регистрации до сохранения.
type NewAccount struct {
	Name               string
	RegistrationNumber *string
	Email              string
	PasswordHash       string
	Role               Role
	IDCardImage        *string
}

// AccountCounts — сводка для админской панели.
type AccountCounts struct {
	ApprovedStudents     int `json:"approvedStudents"`
	PendingAccounts      int `json:"pendingAccounts"`
	PendingLeaveRequests int `json:"pendingLeaveRequests"`
}
