// internal/workers/propensity/record-recommendation/handler_test.go
package recordrecommendation

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/common/logger"
	"propensity-scoring/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestInput() *Input {
	return &Input{
		CustomerID:    "cif-123",
		RequestID:     "req-001",
		SchemaVersion: "derived/v2",
		Recommendations: []models.RankedEntry{
			{Product: models.ProductMitraguna, Score: 0.81, Rank: 1},
			{Product: models.ProductGriya, Score: 0.64, Rank: 2},
			{Product: models.ProductHasanahCard, Score: 0.35, Rank: 3},
		},
	}
}

func createTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))
	h.now = func() time.Time { return fixedNow }
	return h, mock
}

func expectInsert(mock sqlmock.Sqlmock, product models.Product, order int, score float64) *sqlmock.ExpectedExec {
	return mock.ExpectExec("INSERT INTO customer_products").
		WithArgs(sqlmock.AnyArg(), "cif-123", "req-001", string(product), order, score, "derived/v2", fixedNow)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	handler, mock := createTestHandler(t)

	mock.ExpectBegin()
	expectInsert(mock, models.ProductMitraguna, 1, 0.81).WillReturnResult(sqlmock.NewResult(0, 1))
	expectInsert(mock, models.ProductGriya, 2, 0.64).WillReturnResult(sqlmock.NewResult(0, 1))
	expectInsert(mock, models.ProductHasanahCard, 3, 0.35).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, 3, output.RecordedCount)
	assert.Equal(t, 0, output.SkippedCount)
	assert.Equal(t, "2024-03-01T09:30:00Z", output.RecordedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_SkipsZeroScoresAndOrdersByRank(t *testing.T) {
	handler, mock := createTestHandler(t)
	input := createTestInput()
	input.Recommendations = []models.RankedEntry{
		{Product: models.ProductOto, Score: 0.2, Rank: 2},
		{Product: models.ProductPensiun, Score: 0, Rank: 3},
		{Product: models.ProductGriya, Score: 0.7, Rank: 1},
	}

	mock.ExpectBegin()
	expectInsert(mock, models.ProductGriya, 1, 0.7).WillReturnResult(sqlmock.NewResult(0, 1))
	expectInsert(mock, models.ProductOto, 2, 0.2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 2, output.RecordedCount)
	assert.Equal(t, 1, output.SkippedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_AllZeroTouchesNothing(t *testing.T) {
	handler, mock := createTestHandler(t)
	input := createTestInput()
	for i := range input.Recommendations {
		input.Recommendations[i].Score = 0
	}

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 0, output.RecordedCount)
	assert.Equal(t, 3, output.SkippedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ReplayIsIdempotent(t *testing.T) {
	handler, mock := createTestHandler(t)

	mock.ExpectBegin()
	expectInsert(mock, models.ProductMitraguna, 1, 0.81).WillReturnResult(sqlmock.NewResult(0, 0))
	expectInsert(mock, models.ProductGriya, 2, 0.64).WillReturnResult(sqlmock.NewResult(0, 0))
	expectInsert(mock, models.ProductHasanahCard, 3, 0.35).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, 1, output.RecordedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing customer", func(in *Input) { in.CustomerID = "" }},
		{"missing request", func(in *Input) { in.RequestID = "" }},
		{"missing schema version", func(in *Input) { in.SchemaVersion = "" }},
		{"unknown product", func(in *Input) { in.Recommendations[0].Product = "deposito" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mock := createTestHandler(t)
			input := createTestInput()
			tt.mutate(input)

			output, err := handler.Execute(context.Background(), input)
			assert.Nil(t, output)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed), "got %v", err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHandler_Execute_DatabaseErrors(t *testing.T) {
	t.Run("begin fails", func(t *testing.T) {
		handler, mock := createTestHandler(t)
		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		_, err := handler.Execute(context.Background(), createTestInput())
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDatabaseConnectionFailed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert fails and rolls back", func(t *testing.T) {
		handler, mock := createTestHandler(t)
		mock.ExpectBegin()
		expectInsert(mock, models.ProductMitraguna, 1, 0.81).WillReturnResult(sqlmock.NewResult(0, 1))
		expectInsert(mock, models.ProductGriya, 2, 0.64).WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()

		_, err := handler.Execute(context.Background(), createTestInput())
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDatabaseInsertFailed))
		assert.Equal(t, 3, apperrors.GetRetryCount(apperrors.ErrCodeDatabaseInsertFailed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit fails", func(t *testing.T) {
		handler, mock := createTestHandler(t)
		mock.ExpectBegin()
		expectInsert(mock, models.ProductMitraguna, 1, 0.81).WillReturnResult(sqlmock.NewResult(0, 1))
		expectInsert(mock, models.ProductGriya, 2, 0.64).WillReturnResult(sqlmock.NewResult(0, 1))
		expectInsert(mock, models.ProductHasanahCard, 3, 0.35).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

		_, err := handler.Execute(context.Background(), createTestInput())
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDatabaseInsertFailed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
