package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliotree/app/src/pkg/model"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := &Storage{db: NewDatabaseFromDB(db, nil)}
	s.NodeStore = NewNodeStorage(s)
	s.PortfolioStore = NewPortfolioStorage(s)
	return s, mock
}

func TestNodeDelete_RollsBackOnFailure(t *testing.T) {
	s, mock := newMockStorage(t)
	p := &model.Portfolio{ID: 1}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM node_content WHERE node_id = ?")).
		WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM nodes WHERE id = ? AND portfolio_id = ?")).
		WithArgs("a", 1).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := s.NodeDelete(context.Background(), p, []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete node")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNodeAdd_CommitFailure(t *testing.T) {
	s, mock := newMockStorage(t)
	p := &model.Portfolio{ID: 1}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO nodes")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err := s.NodeAdd(context.Background(), p, &model.Node{ID: "x", Title: "x", Type: "skill"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNodeMaxOrder_QueryFailure(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(sort_order), -1) FROM nodes")).
		WithArgs(1, "root").WillReturnError(errors.New("no such table: nodes"))

	_, err := s.NodeMaxOrder(context.Background(), &model.Portfolio{ID: 1}, "root")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPortfolioDelete_Statements(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT storage_key FROM assets WHERE portfolio_id = ?")).WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("portfolios/4/a.png").AddRow("portfolios/4/b.pdf"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM nodes WHERE portfolio_id = ?")).WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assets WHERE portfolio_id = ?")).WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM portfolios WHERE id = ?")).WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	keys, err := s.PortfolioDelete(context.Background(), &model.Portfolio{ID: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"portfolios/4/a.png", "portfolios/4/b.pdf"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}
