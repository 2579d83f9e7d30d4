package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gokulp/beyond-stars-api/internal/domain"
	"github.com/gokulp/beyond-stars-api/internal/infrastructure/postgres"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

const (
	invalidateSQL = `UPDATE password_reset_otps SET used = TRUE WHERE email = \$1 AND used = FALSE`
	insertSQL     = `INSERT INTO password_reset_otps \(email, otp_hash, expires_at\) VALUES \(\$1, \$2, \$3\)`
	markUsedSQL   = `UPDATE password_reset_otps SET used = TRUE WHERE id = \$1 AND used = FALSE`
	setPassSQL    = `UPDATE users SET password_hash = \$1 WHERE email = \$2`
)

func newResetRepoWithMock(t *testing.T) (*postgres.ResetRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return postgres.NewResetRepository(mock), mock
}

// ---- Replace ----

// A second forgot-password request must kill the first code: Replace has to
// flip every unused row to used before inserting, all inside one transaction.
func TestReplace_InvalidatesOldCodesThenInsertsInOneTx(t *testing.T) {
	repo, mock := newResetRepoWithMock(t)
	expiry := time.Now().Add(15 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec(invalidateSQL).
		WithArgs("user@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(insertSQL).
		WithArgs("user@example.com", "otp-hash", expiry).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := repo.Replace(context.Background(), "user@example.com", "otp-hash", expiry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReplace_InsertFails_RollsBack(t *testing.T) {
	repo, mock := newResetRepoWithMock(t)
	expiry := time.Now().Add(15 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec(invalidateSQL).
		WithArgs("user@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(insertSQL).
		WithArgs("user@example.com", "otp-hash", expiry).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := repo.Replace(context.Background(), "user@example.com", "otp-hash", expiry); err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ---- FindActive ----

func TestFindActive_FiltersUsedAndExpiredNewestFirst(t *testing.T) {
	repo, mock := newResetRepoWithMock(t)
	now := time.Now()
	expiry := now.Add(10 * time.Minute)

	// The query itself carries the eligibility rules: unused, unexpired,
	// newest expiry first.
	mock.ExpectQuery(`(?s)used = FALSE AND expires_at > \$2.*ORDER BY expires_at DESC`).
		WithArgs("user@example.com", now).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "otp_hash", "expires_at", "used"}).
			AddRow(int64(7), "user@example.com", "otp-hash", expiry, false))

	got, err := repo.FindActive(context.Background(), "user@example.com", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 7 || got.OTPHash != "otp-hash" || got.Used {
		t.Errorf("unexpected record: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestFindActive_NoEligibleRow_ReturnsErrCodeInvalid(t *testing.T) {
	repo, mock := newResetRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)used = FALSE AND expires_at > \$2.*ORDER BY expires_at DESC`).
		WithArgs("user@example.com", now).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindActive(context.Background(), "user@example.com", now)
	if !errors.Is(err, domain.ErrCodeInvalid) {
		t.Errorf("want ErrCodeInvalid, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ---- Consume ----

func TestConsume_MarksUsedAndUpdatesPasswordInOneTx(t *testing.T) {
	repo, mock := newResetRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(markUsedSQL).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(setPassSQL).
		WithArgs("new-hash", "user@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	if err := repo.Consume(context.Background(), 7, "user@example.com", "new-hash"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// The used = FALSE guard is what makes a second consume of the same code
// fail: the row no longer matches, zero rows update, nothing commits.
func TestConsume_AlreadyUsedCode_ReturnsErrCodeInvalid(t *testing.T) {
	repo, mock := newResetRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(markUsedSQL).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Consume(context.Background(), 7, "user@example.com", "new-hash")
	if !errors.Is(err, domain.ErrCodeInvalid) {
		t.Errorf("want ErrCodeInvalid, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConsume_UserVanished_RollsBackWithErrUserNotFound(t *testing.T) {
	repo, mock := newResetRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(markUsedSQL).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(setPassSQL).
		WithArgs("new-hash", "ghost@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Consume(context.Background(), 7, "ghost@example.com", "new-hash")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("want ErrUserNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
