package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andino-labs/policychat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type KnowledgeBaseRepository struct {
	db dbtx
}

func NewKnowledgeBaseRepository(pool *pgxpool.Pool) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: pool}
}

func NewKnowledgeBaseRepositoryWithTx(tx pgx.Tx) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: tx}
}

func (r *KnowledgeBaseRepository) Create(ctx context.Context, kb *domain.KnowledgeBase) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_bases (id, name, description, author, total_documents, created_at, last_update)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		kb.ID, kb.Name, kb.Description, kb.Author, kb.TotalDocuments, kb.CreatedAt, kb.LastUpdate,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrKnowledgeBaseAlreadyExists
	}
	return err
}

func (r *KnowledgeBaseRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description, author, total_documents, created_at, last_update
		 FROM knowledge_bases WHERE id = $1`,
		id,
	).Scan(&kb.ID, &kb.Name, &kb.Description, &kb.Author, &kb.TotalDocuments, &kb.CreatedAt, &kb.LastUpdate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeBaseNotFound
		}
		return nil, err
	}
	return &kb, nil
}

func (r *KnowledgeBaseRepository) GetByName(ctx context.Context, name string) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description, author, total_documents, created_at, last_update
		 FROM knowledge_bases WHERE name = $1`,
		name,
	).Scan(&kb.ID, &kb.Name, &kb.Description, &kb.Author, &kb.TotalDocuments, &kb.CreatedAt, &kb.LastUpdate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeBaseNotFound
		}
		return nil, err
	}
	return &kb, nil
}

func (r *KnowledgeBaseRepository) List(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, description, author, total_documents, created_at, last_update
		 FROM knowledge_bases ORDER BY last_update DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bases []*domain.KnowledgeBase
	for rows.Next() {
		var kb domain.KnowledgeBase
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Description, &kb.Author, &kb.TotalDocuments, &kb.CreatedAt, &kb.LastUpdate); err != nil {
			return nil, err
		}
		bases = append(bases, &kb)
	}
	return bases, rows.Err()
}

func (r *KnowledgeBaseRepository) Update(ctx context.Context, kb *domain.KnowledgeBase) error {
	kb.LastUpdate = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_bases SET name = $1, description = $2, last_update = $3 WHERE id = $4`,
		kb.Name, kb.Description, kb.LastUpdate, kb.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeBaseNotFound
	}
	return nil
}

func (r *KnowledgeBaseRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM knowledge_bases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeBaseNotFound
	}
	return nil
}

// AdjustDocumentCount shifts total_documents by delta, clamping at zero.
func (r *KnowledgeBaseRepository) AdjustDocumentCount(ctx context.Context, id string, delta int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_bases
		 SET total_documents = GREATEST(total_documents + $1, 0), last_update = $2
		 WHERE id = $3`,
		delta, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeBaseNotFound
	}
	return nil
}
