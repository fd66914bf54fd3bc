package markers

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.Pool.Ping(ctx)
}

func (p *Postgres) MarkCompleted(ctx context.Context, sessionID, userID string) error {
	_, err := p.Pool.Exec(ctx,
		`INSERT INTO quiz_completions (session_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (session_id, user_id) DO NOTHING`,
		sessionID, userID)
	return err
}

func (p *Postgres) Completed(ctx context.Context, sessionID, userID string) (bool, error) {
	var one int
	err := p.Pool.QueryRow(ctx,
		`SELECT 1 FROM quiz_completions WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (p *Postgres) Close() error {
	if p.Pool != nil {
		p.Pool.Close()
	}
	return nil
}
