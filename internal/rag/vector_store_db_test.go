package rag

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func embeddingJSON(t *testing.T, v []float32) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestDatabaseStoreSearchScoresAndOrders(t *testing.T) {
	db, mock := newMockGormDB(t)
	store := NewDatabaseVectorStore(db)

	rows := sqlmock.NewRows([]string{"id", "document_id", "content", "embedding", "metadata"}).
		AddRow(1, "doc-a", "正交内容", embeddingJSON(t, []float32{0, 1}), `{"filename":"a.txt"}`).
		AddRow(2, "doc-a", "相关内容", embeddingJSON(t, []float32{1, 0}), `{"filename":"a.txt"}`)
	mock.ExpectQuery(`SELECT id, document_id, content, embedding, metadata FROM "document_chunks"`).
		WillReturnRows(rows)

	matches, err := store.Search(context.Background(), VectorSearchRequest{
		QueryEmbedding: []float32{1, 0},
		Limit:          5,
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, uint64(2), matches[0].ChunkID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, "a.txt", matches[0].Metadata["filename"])
	assert.Equal(t, uint64(1), matches[1].ChunkID)
	assert.InDelta(t, 0.0, matches[1].Score, 1e-6)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreSearchSkipsCorruptEmbedding(t *testing.T) {
	db, mock := newMockGormDB(t)
	store := NewDatabaseVectorStore(db)

	rows := sqlmock.NewRows([]string{"id", "document_id", "content", "embedding", "metadata"}).
		AddRow(1, "doc-a", "坏数据", "not-json", "{}").
		AddRow(2, "doc-a", "好数据", embeddingJSON(t, []float32{1, 0}), "{}")
	mock.ExpectQuery(`SELECT id, document_id, content, embedding, metadata FROM "document_chunks"`).
		WillReturnRows(rows)

	matches, err := store.Search(context.Background(), VectorSearchRequest{
		QueryEmbedding: []float32{1, 0},
		Limit:          5,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint64(2), matches[0].ChunkID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreCount(t *testing.T) {
	db, mock := newMockGormDB(t)
	store := NewDatabaseVectorStore(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "document_chunks"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreDeleteDocument(t *testing.T) {
	db, mock := newMockGormDB(t)
	store := NewDatabaseVectorStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "document_chunks" WHERE document_id = \$1`).
		WithArgs("doc-a").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, store.DeleteDocument(context.Background(), "doc-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
