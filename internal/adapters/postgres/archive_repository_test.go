package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var insertArchiveSQL = regexp.QuoteMeta(`INSERT INTO "sovereignty_records"`) + ".*" +
	regexp.QuoteMeta(`ON CONFLICT ("svt_id") DO NOTHING`)

func newMockRepository(t *testing.T) (*ArchiveRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	repo := NewArchiveRepository(db)
	repo.nowFn = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return repo, mock
}

func TestArchiveInsertsIgnoringConflicts(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(insertArchiveSQL).WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Archive(context.Background(),
		domain.NewRecord("SVT-1", "did:aegis:alpha", "AFFIRM", 1717000000, 5000),
		domain.Placement{Topic: domain.DefaultTopic, Partition: 3, Offset: 99})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveRedeliveryIsNoop(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(insertArchiveSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertArchiveSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	rec := domain.NewRecord("SVT-1", "did:aegis:alpha", "AFFIRM", 1717000000, 5000)

	require.NoError(t, repo.Archive(context.Background(), rec, domain.Placement{Offset: 1}))
	require.NoError(t, repo.Archive(context.Background(), rec, domain.Placement{Offset: 1}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveWrapsDatabaseErrors(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(insertArchiveSQL).WillReturnError(errors.New("connection reset by peer"))

	err := repo.Archive(context.Background(), domain.NewRecord("SVT-1", "did:x", "AFFIRM", 1, 5000), domain.Placement{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSinkFailure)
	assert.Contains(t, err.Error(), "SVT-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsAreEmbedded(t *testing.T) {
	raw, err := migrationFS.ReadFile("migrations/0001_sovereignty_records.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "sovereignty_records")
	assert.Contains(t, string(raw), "svt_id")
}
