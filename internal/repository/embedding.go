package repository

import (
	"context"
	"time"

	"github.com/andino-labs/policychat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DocumentEmbeddingRepository handles persistence of chunked document embeddings.
type DocumentEmbeddingRepository struct {
	db dbtx
}

func NewDocumentEmbeddingRepository(pool *pgxpool.Pool) *DocumentEmbeddingRepository {
	return &DocumentEmbeddingRepository{db: pool}
}

func NewDocumentEmbeddingRepositoryWithTx(tx pgx.Tx) *DocumentEmbeddingRepository {
	return &DocumentEmbeddingRepository{db: tx}
}

// Insert stores one embedding record. There is no uniqueness constraint on
// (document_id, chunk_index): repeated inserts for the same chunk accumulate,
// which is why the indexing path goes through ReplaceForDocument instead.
func (r *DocumentEmbeddingRepository) Insert(ctx context.Context, e *domain.DocumentEmbedding) error {
	return insertEmbedding(ctx, r.db, e)
}

// ReplaceForDocument deletes existing embedding records for a document and
// inserts the new set in one transaction, so re-indexing never leaves stale
// or partial chunk sets behind.
func (r *DocumentEmbeddingRepository) ReplaceForDocument(ctx context.Context, documentID string, records []domain.DocumentEmbedding) error {
	return inTx(ctx, r.db, func(db dbtx) error {
		return replaceForDocument(ctx, db, documentID, records)
	})
}

func replaceForDocument(ctx context.Context, db dbtx, documentID string, records []domain.DocumentEmbedding) error {
	_, err := db.Exec(ctx, `DELETE FROM document_embeddings WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return nil
	}

	for i := range records {
		if err := insertEmbedding(ctx, db, &records[i]); err != nil {
			return err
		}
	}

	return nil
}

func insertEmbedding(ctx context.Context, db dbtx, e *domain.DocumentEmbedding) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	lastUpdate := e.LastUpdate
	if lastUpdate.IsZero() {
		lastUpdate = createdAt
	}
	_, err := db.Exec(ctx,
		`INSERT INTO document_embeddings
			(id, document_id, document_name, knowledge_base_id, chunk_index, chunk_text,
			 embedding, lines_of_service, profiles, created_at, last_update)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID,
		e.DocumentID,
		e.DocumentName,
		e.KnowledgeBaseID,
		e.ChunkIndex,
		e.ChunkText,
		pgvector.NewVector(e.Vector),
		e.LinesOfService,
		e.Profiles,
		createdAt,
		lastUpdate,
	)
	return err
}

func (r *DocumentEmbeddingRepository) DeleteByDocumentID(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_embeddings WHERE document_id = $1`, documentID)
	return err
}

// ListAll returns every embedding record ordered most-recently-updated first.
// The ranker relies on that ordering to break score ties.
func (r *DocumentEmbeddingRepository) ListAll(ctx context.Context) ([]domain.DocumentEmbedding, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, document_name, knowledge_base_id, chunk_index, chunk_text,
		        embedding, lines_of_service, profiles, created_at, last_update
		 FROM document_embeddings
		 ORDER BY last_update DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEmbeddingRows(rows)
}

func (r *DocumentEmbeddingRepository) ListByDocumentID(ctx context.Context, documentID string) ([]domain.DocumentEmbedding, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, document_name, knowledge_base_id, chunk_index, chunk_text,
		        embedding, lines_of_service, profiles, created_at, last_update
		 FROM document_embeddings
		 WHERE document_id = $1
		 ORDER BY chunk_index ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEmbeddingRows(rows)
}

func scanEmbeddingRows(rows pgx.Rows) ([]domain.DocumentEmbedding, error) {
	var records []domain.DocumentEmbedding
	for rows.Next() {
		var e domain.DocumentEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.DocumentName, &e.KnowledgeBaseID, &e.ChunkIndex, &e.ChunkText,
			&vec, &e.LinesOfService, &e.Profiles, &e.CreatedAt, &e.LastUpdate); err != nil {
			return nil, err
		}
		e.Vector = vec.Slice()
		records = append(records, e)
	}
	return records, rows.Err()
}
