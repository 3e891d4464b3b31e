package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestGroundingRepositoryGetReturnsRecordsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewGroundingRepository(db)
	rows := sqlmock.NewRows([]string{"session_id", "turn_index", "passages_text", "created_at"}).
		AddRow("s-1", 1, "first turn docs", time.Now()).
		AddRow("s-1", 3, "third turn docs", time.Now())

	mock.ExpectQuery("FROM turn_groundings").
		WithArgs("s-1").
		WillReturnRows(rows)

	groundings, err := repo.Get(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(groundings) != 2 {
		t.Fatalf("expected 2 groundings, got %d", len(groundings))
	}
	if groundings[0].TurnIndex != 1 || groundings[1].TurnIndex != 3 {
		t.Fatalf("unexpected turn order: %d, %d", groundings[0].TurnIndex, groundings[1].TurnIndex)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGroundingRepositoryGetEmptySession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewGroundingRepository(db)
	mock.ExpectQuery("FROM turn_groundings").
		WithArgs("s-none").
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "turn_index", "passages_text", "created_at"}))

	groundings, err := repo.Get(context.Background(), "s-none")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(groundings) != 0 {
		t.Fatalf("expected no groundings, got %d", len(groundings))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGroundingRepositoryAppendAllowsRepeatedTurnIndex(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewGroundingRepository(db)
	mock.ExpectExec("INSERT INTO turn_groundings").
		WithArgs(sqlmock.AnyArg(), "s-1", 2, "docs A", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO turn_groundings").
		WithArgs(sqlmock.AnyArg(), "s-1", 2, "docs B", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Append(context.Background(), "s-1", 2, "docs A"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := repo.Append(context.Background(), "s-1", 2, "docs B"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
