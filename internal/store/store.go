package store

import (
	"context"
	"errors"

	"ecoguard/internal/db"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Store bundles every repository over one pool so a single value can be
// handed to the engine, the fan-out and the HTTP layer.
type Store struct {
	*db.UnitOfWork
	*ReportRepository
	*HistoryRepository
	*RecordRepository
	*CandidateRepository
	*RepresentativeRepository
	*ProfileRepository
	*PushTokenRepository
	*NotificationRepository
	*OutboxRepository
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		UnitOfWork:               db.NewUnitOfWork(pool),
		ReportRepository:         NewReportRepository(pool),
		HistoryRepository:        NewHistoryRepository(pool),
		RecordRepository:         NewRecordRepository(pool),
		CandidateRepository:      NewCandidateRepository(pool),
		RepresentativeRepository: NewRepresentativeRepository(pool),
		ProfileRepository:        NewProfileRepository(pool),
		PushTokenRepository:      NewPushTokenRepository(pool),
		NotificationRepository:   NewNotificationRepository(pool),
		OutboxRepository:         NewOutboxRepository(pool),
	}
}

func conn(ctx context.Context, pool *pgxpool.Pool) db.Conn {
	return db.From(ctx, pool)
}
