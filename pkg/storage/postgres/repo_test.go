package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/dag-cluster/pkg/core/types"
	"github.com/LENAX/dag-cluster/pkg/core/workflow"
	"github.com/LENAX/dag-cluster/pkg/storage/sqlrepo"
)

func setupMock(t *testing.T) (*sqlrepo.WorkflowRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlrepo.NewWorkflowRepo(sqlx.NewDb(db, "postgres"), NewPostgresDialect()), mock
}

func TestInitSchema(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS id_assigner")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)CREATE TABLE IF NOT EXISTS workflow \(.*create_time TIMESTAMP NOT NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)CREATE TABLE IF NOT EXISTS workflow_task \(.*exec_time DOUBLE PRECISION`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextTaskIDs_ExistingCounter(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE id_assigner SET next_id = next_id + $1 WHERE name = $2`)).
		WithArgs(3, "task").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT next_id FROM id_assigner WHERE name = $1`)).
		WithArgs("task").
		WillReturnRows(sqlmock.NewRows([]string{"next_id"}).AddRow(11))
	mock.ExpectCommit()

	ids, err := repo.NextTaskIDs(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9, 10}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextTaskIDs_FreshCounter(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE id_assigner SET next_id = next_id + $1 WHERE name = $2`)).
		WithArgs(2, "task").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO id_assigner (name, next_id) VALUES ($1, $2)`)).
		WithArgs("task", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ids, err := repo.NextTaskIDs(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWorkflowState_NotFound(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE workflow SET state = $1, update_time = $2 WHERE id = $3`)).
		WithArgs("ARCHIVED", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateWorkflowState(context.Background(), "missing", workflow.StateArchived)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDialect(t *testing.T) {
	d := NewPostgresDialect()
	assert.Equal(t,
		"INSERT INTO workflow (id, state) VALUES (:id, :state) ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state",
		d.UpsertSQL("workflow", []string{"id", "state"}, "id", []string{"state"}))
	assert.Equal(t, "created TIMESTAMP NOT NULL", d.CreateTableSQL("created DATETIME NOT NULL"))
}
