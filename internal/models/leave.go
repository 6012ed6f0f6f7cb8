package models

import "time"

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

func ParseLeaveStatus(s string) (LeaveStatus, bool) {
	switch LeaveStatus(s) {
	case LeavePending, LeaveApproved, LeaveRejected:
		return LeaveStatus(s), true
	}
	return "", false
}

// IsTerminal: из approved/rejected переходов нет.
func (s LeaveStatus) IsTerminal() bool {
	return s == LeaveApproved || s == LeaveRejected
}

type LeaveRequest struct {
	ID              int64       `db:"id" json:"id"`
	AccountID       int64       `db:"account_id" json:"accountId"`
	Reason          string      `db:"reason" json:"reason"`
	StartDate       time.Time   `db:"start_date" json:"startDate"`
	EndDate         time.Time   `db:"end_date" json:"endDate"`
	Status          LeaveStatus `db:"status" json:"status"`
	RejectionReason *string     `db:"rejection_reason" json:"rejectionReason,omitempty"`
	DocumentPath    *string     `db:"document_path" json:"-"`
	AppliedAt       time.Time   `db:"applied_at" json:"appliedAt"`
	DecidedAt       *time.Time  `db:"decided_at" json:"decidedAt,omitempty"`
	DecidedBy       *int64      `db:"decided_by" json:"decidedBy,omitempty"`
}

func (r *LeaveRequest) IsPending() bool  { return r.Status == LeavePending }
func (r *LeaveRequest) IsApproved() bool { return r.Status == LeaveApproved }
func (r *LeaveRequest) IsRejected() bool { return r.Status == LeaveRejected }

// HasDocument — письмо сгенерировано и путь сохранён.
func (r *LeaveRequest) HasDocument() bool {
	return r.DocumentPath != nil && *r.DocumentPath != ""
}

// Owner — поля владельца, которые подтягиваются к списку заявок.
type Owner struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	RegistrationNumber *string `json:"registrationNumber,omitempty"`
}

type LeaveWithOwner struct {
	LeaveRequest
	Student Owner `json:"student"`
}

// NewLeave — заявка студента до сохранения.
type NewLeave struct {
	AccountID int64
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

// Decision — решение админа по заявке.
type Decision struct {
	RequestID       int64
	Status          LeaveStatus
	RejectionReason string
	DecidedBy       int64
}
