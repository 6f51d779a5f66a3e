package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	"github.com/zatekoja/reviewsearch/internal/domain/repositories"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/reviewsearch/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/reviewsearch/pkg/errors"
)

const membersTable = "members"

var memberColumns = []interface{}{"member_no", "member_id", "name", "email", "created_at", "updated_at"}

// MemberAdapter implements the MemberRepository interface
type MemberAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewMemberAdapter creates a new member adapter
func NewMemberAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.MemberRepository {
	return &MemberAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// GetByNos fetches every listed member with a single IN query
func (a *MemberAdapter) GetByNos(ctx context.Context, memberNos []int64) (map[int64]*entities.Member, error) {
	members := make(map[int64]*entities.Member, len(memberNos))
	nos := distinctSorted(memberNos)
	if len(nos) == 0 {
		return members, nil
	}

	query, args, err := a.db.Select(memberColumns...).
		From(membersTable).
		Where(goqu.C("member_no").In(nos)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	observability.RecordDBMetric(ctx, a.metrics, "members.get_by_nos", time.Since(start))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query members", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan member", err)
		}
		members[m.MemberNo] = m
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate members", err)
	}

	return members, nil
}

// GetByNo fetches a single member
func (a *MemberAdapter) GetByNo(ctx context.Context, memberNo int64) (*entities.Member, error) {
	query, args, err := a.db.Select(memberColumns...).
		From(membersTable).
		Where(goqu.Ex{"member_no": memberNo}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	row := a.client.DB().QueryRowContext(ctx, query, args...)
	m, err := scanMember(row)
	observability.RecordDBMetric(ctx, a.metrics, "members.get_by_no", time.Since(start))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("member %d not found", memberNo))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get member", err)
	}
	return m, nil
}

// Ping verifies the relational store is reachable
func (a *MemberAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(row rowScanner) (*entities.Member, error) {
	m := &entities.Member{}
	var memberID, name, email sql.NullString
	var createdAt, updatedAt sql.NullTime

	if err := row.Scan(&m.MemberNo, &memberID, &name, &email, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	m.MemberID = memberID.String
	m.Name = name.String
	m.Email = email.String
	if createdAt.Valid {
		m.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		m.UpdatedAt = updatedAt.Time
	}
	return m, nil
}

func distinctSorted(nos []int64) []int64 {
	seen := make(map[int64]struct{}, len(nos))
	out := make([]int64, 0, len(nos))
	for _, n := range nos {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
