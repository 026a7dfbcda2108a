package alertlog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-labs/ruleengine/internal/alert"
)

func TestEmitInsertsOneRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO alert_history").
		WithArgs("temp.high", "rack-1", "ACTIVE", "WARNING", "too hot", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := Open(db)
	a := &alert.Alert{
		RuleName: "temp.high", Element: "rack-1", State: alert.StateActive,
		Severity: "WARNING", Description: "too hot", Actions: []string{"EMAIL"},
		Ctime: time.Now(), Mtime: time.Now(),
	}
	require.NoError(t, store.Emit(a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForAlertReturnsRowsNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "rule_name", "element", "state", "severity", "description", "actions", "ctime", "mtime", "recorded_at"}).
		AddRow(2, "temp.high", "rack-1", "RESOLVED", "WARNING", "too hot", "{EMAIL}", time.Now(), time.Now(), time.Now()).
		AddRow(1, "temp.high", "rack-1", "ACTIVE", "WARNING", "too hot", "{EMAIL}", time.Now(), time.Now(), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM alert_history").
		WithArgs("temp.high", "rack-1", 100).
		WillReturnRows(rows)

	store := Open(db)
	history, err := store.ForAlert(context.Background(), "temp.high", "rack-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "RESOLVED", history[0].State)
	assert.Equal(t, []string{"EMAIL"}, history[0].Actions)
}
