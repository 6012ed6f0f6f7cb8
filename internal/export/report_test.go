package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Krishna180104/cse-leave/internal/models"
)

func TestLeaveReport_ReopensWithBothSheets(t *testing.T) {
	reg := "21CS001"
	reason := "exams"
	applied := time.Date(2024, 1, 1, 4, 30, 0, 0, time.UTC)
	leaves := []models.LeaveWithOwner{{
		LeaveRequest: models.LeaveRequest{
			ID: 1, Reason: "Medical", Status: models.LeaveRejected, RejectionReason: &reason,
			StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			AppliedAt: applied,
		},
		Student: models.Owner{ID: 2, Name: "Asha", Email: "asha@cse.edu", RegistrationNumber: &reg},
	}}
	accounts := []models.Account{
		{ID: 1, Name: "Head", Email: "head@cse.edu", Role: models.Admin, IsApproved: true, CreatedAt: applied},
		{ID: 2, Name: "Asha", Email: "asha@cse.edu", RegistrationNumber: &reg, Role: models.Student, CreatedAt: applied},
	}
	loc, _ := time.LoadLocation("Asia/Kolkata")

	f, err := LeaveReport(leaves, accounts, loc)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	back, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	sheets := back.GetSheetList()
	if len(sheets) != 2 || sheets[0] != LeaveSheet || sheets[1] != AccountSheet {
		t.Fatalf("sheets = %v", sheets)
	}

	rows, err := back.GetRows(LeaveSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0][0] != "ID" || rows[0][8] != "Rejection reason" {
		t.Fatalf("leave rows = %v", rows)
	}
	if rows[1][2] != "21CS001" || rows[1][4] != "2024-01-01" || rows[1][8] != "exams" || rows[1][9] != "2024-01-01 10:00" {
		t.Fatalf("leave row = %v", rows[1])
	}

	arows, err := back.GetRows(AccountSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(arows) != 3 || arows[1][5] != "yes" || arows[2][5] != "no" {
		t.Fatalf("account rows = %v", arows)
	}
}

func TestWorkbook_EmptySheetKeepsHeader(t *testing.T) {
	f, err := LeaveReport(nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := f.GetRows(AccountSheet)
	if len(rows) != 1 || len(rows[0]) != len(accountHeader) {
		t.Fatalf("rows = %v", rows)
	}
}

func TestColumnName(t *testing.T) {
	for n, want := range map[int]string{1: "A", 26: "Z", 27: "AA", 52: "AZ"} {
		if got := columnName(n); got != want {
			t.Fatalf("columnName(%d) = %s", n, got)
		}
	}
}

func TestReportFilename(t *testing.T) {
	got := ReportFilename("CSE / Dept", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if got != "CSE _ Dept - leave report - 2024-01-02.xlsx" {
		t.Fatalf("got %q", got)
	}
}
