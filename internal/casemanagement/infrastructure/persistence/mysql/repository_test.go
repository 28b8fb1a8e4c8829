package mysql

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
	"github.com/wyfcoding/amlplatform/pkg/db/dbtest"
)

func TestGetByCaseNumber(t *testing.T) {
	gdb, mock := dbtest.NewMySQL(t)
	repo := NewCaseRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `cases` WHERE case_number = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "case_number", "status", "alert_ids", "history"}).
			AddRow(3, "CASE-1", "OPEN", `["A-1","A-2"]`, `[{"action":"OPENED","actor":"system","at":"2026-03-01T12:00:00Z"}]`))

	c, err := repo.GetByCaseNumber(context.Background(), "CASE-1")
	require.NoError(t, err)
	assert.Equal(t, domain.CaseOpen, c.Status)
	assert.Equal(t, []string{"A-1", "A-2"}, c.AlertIDs)
	require.Len(t, c.History, 1)
	assert.Equal(t, "OPENED", c.History[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByCaseNumberNotFound(t *testing.T) {
	gdb, mock := dbtest.NewMySQL(t)
	repo := NewCaseRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `cases`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByCaseNumber(context.Background(), "CASE-404")
	assert.ErrorIs(t, err, domain.ErrCaseNotFound)
}

func TestFindBySourceAlert(t *testing.T) {
	gdb, mock := dbtest.NewMySQL(t)
	repo := NewCaseRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `cases` WHERE source_alert_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "case_number", "source_alert_id"}).AddRow(1, "CASE-1", "A-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `cases` WHERE source_alert_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	c, err := repo.FindBySourceAlert(context.Background(), "A-1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "CASE-1", c.CaseNumber)

	c, err = repo.FindBySourceAlert(context.Background(), "A-2")
	require.NoError(t, err)
	assert.Nil(t, c)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListCases(t *testing.T) {
	gdb, mock := dbtest.NewMySQL(t)
	repo := NewCaseRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `cases` WHERE status = ? AND assigned_to = ?")).
		WithArgs("IN_PROGRESS", "analyst-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `cases` WHERE status = ? AND assigned_to = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "case_number", "status"}).AddRow(1, "CASE-1", "IN_PROGRESS"))

	cases, total, err := repo.List(context.Background(), domain.CaseFilter{
		Status:     domain.CaseInProgress,
		AssignedTo: "analyst-1",
		Limit:      20,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, cases, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByReportIDNotFound(t *testing.T) {
	gdb, mock := dbtest.NewMySQL(t)
	repo := NewReportRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `suspicious_activity_reports`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByReportID(context.Background(), "STR-404")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)
}

func TestListReportsByStatus(t *testing.T) {
	gdb, mock := dbtest.NewMySQL(t)
	repo := NewReportRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `suspicious_activity_reports` WHERE status = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id", "status", "indicators", "transaction_info"}).
			AddRow(1, "STR-1", "SUBMITTED", `["STRUCTURING"]`, `{"transaction_id":"TX-1","amount":"45000"}`))

	reports, err := repo.ListByStatus(context.Background(), domain.ReportSubmitted, 50)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"STRUCTURING"}, reports[0].Indicators)
	assert.Equal(t, "TX-1", reports[0].Transaction.TransactionID)
	assert.Equal(t, "45000", reports[0].Transaction.Amount.String())
	require.NoError(t, mock.ExpectationsWereMet())
}
