package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abhiram-Kasu/CrowdCue/internal/domain"
)

const partyColumns = `id, code, name, owner_id, created_at`

// PartyRepo implements domain.PartyRepository backed by PostgreSQL.
type PartyRepo struct {
	pool *pgxpool.Pool
}

func NewPartyRepo(pool *pgxpool.Pool) *PartyRepo {
	return &PartyRepo{pool: pool}
}

var _ domain.PartyRepository = (*PartyRepo)(nil)

func (r *PartyRepo) Create(ctx context.Context, code, name string, ownerID uuid.UUID) (*domain.Party, error) {
	var party domain.Party
	err := r.pool.QueryRow(ctx, `
		INSERT INTO parties (code, name, owner_id)
		VALUES ($1, $2, $3)
		RETURNING `+partyColumns,
		code, name, ownerID,
	).Scan(&party.ID, &party.Code, &party.Name, &party.OwnerID, &party.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create party: %w", err)
	}
	return &party, nil
}

func (r *PartyRepo) GetByCode(ctx context.Context, code string) (*domain.Party, error) {
	var party domain.Party
	err := r.pool.QueryRow(ctx, `
		SELECT `+partyColumns+`
		FROM parties
		WHERE code = $1`,
		code,
	).Scan(&party.ID, &party.Code, &party.Name, &party.OwnerID, &party.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPartyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get party by code: %w", err)
	}
	return &party, nil
}

func (r *PartyRepo) AddMember(ctx context.Context, partyID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO party_members (party_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (party_id, user_id) DO NOTHING`,
		partyID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to add party member: %w", err)
	}
	return nil
}

func (r *PartyRepo) IsMember(ctx context.Context, partyID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM party_members
			WHERE party_id = $1 AND user_id = $2
		)`,
		partyID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check party membership: %w", err)
	}
	return exists, nil
}

func (r *PartyRepo) List(ctx context.Context) ([]domain.Party, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+partyColumns+`
		FROM parties
		ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list parties: %w", err)
	}
	defer rows.Close()

	var parties []domain.Party
	for rows.Next() {
		var party domain.Party
		if err := rows.Scan(&party.ID, &party.Code, &party.Name, &party.OwnerID, &party.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan party row: %w", err)
		}
		parties = append(parties, party)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate party rows: %w", err)
	}
	return parties, nil
}
