package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/andino-labs/policychat/internal/domain"
	"github.com/andino-labs/policychat/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents
			(id, name, author, knowledge_base_id, storage_key, content, summary,
			 lines_of_service, profiles, size_bytes, index_status, created_at, last_update)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.Name, d.Author, d.KnowledgeBaseID, d.StorageKey, d.Content, d.Summary,
		d.LinesOfService, d.Profiles, d.SizeBytes, d.IndexStatus, d.CreatedAt, d.LastUpdate,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, name, author, knowledge_base_id, storage_key, content, summary,
		        lines_of_service, profiles, size_bytes, index_status, created_at, last_update
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Name, &d.Author, &d.KnowledgeBaseID, &d.StorageKey, &d.Content, &d.Summary,
		&d.LinesOfService, &d.Profiles, &d.SizeBytes, &d.IndexStatus, &d.CreatedAt, &d.LastUpdate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	d.SizeFormatted = domain.FormatSize(d.SizeBytes)
	return &d, nil
}

func (r *DocumentRepository) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, author, knowledge_base_id, storage_key, content, summary,
		        lines_of_service, profiles, size_bytes, index_status, created_at, last_update
		 FROM documents WHERE knowledge_base_id = $1 ORDER BY last_update DESC`,
		knowledgeBaseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListByAuthorPage returns one keyset page of the author's documents, newest
// first. It fetches limit+1 rows so the caller can tell whether more remain.
func (r *DocumentRepository) ListByAuthorPage(ctx context.Context, author string, cursor *pagination.Cursor, limit int) ([]*domain.Document, error) {
	query := `SELECT id, name, author, knowledge_base_id, storage_key, content, summary,
	                 lines_of_service, profiles, size_bytes, index_status, created_at, last_update
	          FROM documents WHERE author = $1`
	args := []any{author}

	if cursor != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, cursor.CreatedAt, cursor.LastID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ` + strconv.Itoa(limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func (r *DocumentRepository) Update(ctx context.Context, d *domain.Document) error {
	d.LastUpdate = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET name = $1, content = $2, summary = $3, lines_of_service = $4, profiles = $5,
		     size_bytes = $6, index_status = $7, last_update = $8
		 WHERE id = $9`,
		d.Name, d.Content, d.Summary, d.LinesOfService, d.Profiles,
		d.SizeBytes, d.IndexStatus, d.LastUpdate, d.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) UpdateIndexStatus(ctx context.Context, id string, status domain.IndexStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET index_status = $1, last_update = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var docs []*domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Name, &d.Author, &d.KnowledgeBaseID, &d.StorageKey, &d.Content, &d.Summary,
			&d.LinesOfService, &d.Profiles, &d.SizeBytes, &d.IndexStatus, &d.CreatedAt, &d.LastUpdate); err != nil {
			return nil, err
		}
		d.SizeFormatted = domain.FormatSize(d.SizeBytes)
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}
