// Package export builds the admin XLSX report of leave requests and accounts.
package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Krishna180104/cse-leave/internal/models"
)

const (
	LeaveSheet   = "Leave requests"
	AccountSheet = "Accounts"
)

var (
	leaveHeader   = []string{"ID", "Student", "Registration number", "Email", "From", "To", "Reason", "Status", "Rejection reason", "Applied at"}
	accountHeader = []string{"ID", "Name", "Registration number", "Email", "Role", "Approved", "Created at"}
)

type Sheet struct {
	Title  string
	Header []string
	Rows   [][]string
}

// Workbook собирает книгу из листов; первый лист занимает место стандартного Sheet1.
func Workbook(sheets []Sheet) (*excelize.File, error) {
	f := excelize.NewFile()
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Title); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.Title); err != nil {
			return nil, fmt.Errorf("new sheet: %w", err)
		}
		if err := f.SetSheetRow(s.Title, "A1", &s.Header); err != nil {
			return nil, fmt.Errorf("header %s: %w", s.Title, err)
		}
		for r, row := range s.Rows {
			row := row
			cell := "A" + strconv.Itoa(r+2)
			if err := f.SetSheetRow(s.Title, cell, &row); err != nil {
				return nil, fmt.Errorf("row %s: %w", cell, err)
			}
		}
		if err := ApplyDefaultFormatting(f, s.Title); err != nil {
			return nil, fmt.Errorf("format %s: %w", s.Title, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// LeaveReport — книга с заявками и аккаунтами для админа.
func LeaveReport(leaves []models.LeaveWithOwner, accounts []models.Account, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.UTC
	}
	lrows := make([][]string, 0, len(leaves))
	for _, l := range leaves {
		lrows = append(lrows, []string{
			strconv.FormatInt(l.ID, 10),
			l.Student.Name,
			deref(l.Student.RegistrationNumber),
			l.Student.Email,
			l.StartDate.Format(time.DateOnly),
			l.EndDate.Format(time.DateOnly),
			l.Reason,
			string(l.Status),
			deref(l.RejectionReason),
			l.AppliedAt.In(loc).Format("2006-01-02 15:04"),
		})
	}
	arows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		approved := "no"
		if a.IsApproved {
			approved = "yes"
		}
		arows = append(arows, []string{
			strconv.FormatInt(a.ID, 10),
			a.Name,
			a.RegNo(),
			a.Email,
			string(a.Role),
			approved,
			a.CreatedAt.In(loc).Format("2006-01-02 15:04"),
		})
	}
	return Workbook([]Sheet{
		{Title: LeaveSheet, Header: leaveHeader, Rows: lrows},
		{Title: AccountSheet, Header: accountHeader, Rows: arows},
	})
}

// ReportFilename — человекочитаемое имя файла отчёта.
func ReportFilename(department string, now time.Time) string {
	return sanitizeFileName(fmt.Sprintf("%s - leave report - %s.xlsx", cleanName(department), now.Format(time.DateOnly)))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
