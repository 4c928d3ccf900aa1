package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// MaxWritesPerBatch is the store's per-commit item limit. Bulk writes are
// split so no single transaction exceeds it.
const MaxWritesPerBatch = 500

// Messages provides access to stored message fragments.
type Messages struct{}

// NewMessages creates a Messages accessor.
func NewMessages() *Messages { return &Messages{} }

// AddBatch persists fragments in batches of at most MaxWritesPerBatch rows.
// Batches commit concurrently and independently: a failed batch does not
// roll back batches that already committed. Re-ingested fragments are
// ignored via the (id, chunk_index) uniqueness, so retried event delivery
// is idempotent.
func (m *Messages) AddBatch(ctx context.Context, s *Store, fragments []Message) error {
	var batches [][]Message
	for len(fragments) > 0 {
		n := len(fragments)
		if n > MaxWritesPerBatch {
			n = MaxWritesPerBatch
		}
		batches = append(batches, fragments[:n])
		fragments = fragments[n:]
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, batch := range batches {
		g.Go(func() error {
			return s.ExecTx(gctx, func(q Queryer) error {
				for i := range batch {
					if err := m.insert(gctx, q, &batch[i]); err != nil {
						return err
					}
				}
				return nil
			})
		})
	}
	return g.Wait()
}

func (m *Messages) insert(ctx context.Context, q Queryer, msg *Message) error {
	if msg.DocID == "" {
		msg.DocID = uuid.NewString()
	}
	mentioned, err := json.Marshal(msg.MentionedIDs)
	if err != nil {
		return fmt.Errorf("marshal mentioned ids: %w", err)
	}
	var blob []byte
	if len(msg.Embedding) > 0 {
		blob = encodeFloat32s(msg.Embedding)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO messages (doc_id, id, chunk_index, chat_id, content, sent_by, sent_to, mentioned_ids, command, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, chunk_index) DO NOTHING
	`, msg.DocID, msg.ID, msg.ChunkIndex, msg.ChatID, msg.Content, msg.SentBy, msg.SentTo,
		string(mentioned), msg.Command, blob, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// RangeByChat returns fragments for a chat with created_at inside
// [from, to], chronological, chunks of one message in index order.
func (m *Messages) RangeByChat(ctx context.Context, q Queryer, chatID string, from, to int64) ([]Message, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT doc_id, id, chunk_index, chat_id, content, sent_by, sent_to, mentioned_ids, command, created_at
		FROM messages
		WHERE chat_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC, id ASC, chunk_index ASC
	`, chatID, from, to)
	if err != nil {
		return nil, fmt.Errorf("range messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// SimilaritySearch returns the top-k fragments of a chat nearest to the
// query vector by cosine similarity. Embeddings are little-endian float32
// blobs compared in Go; chats stay small enough that a scan is cheap.
func (m *Messages) SimilaritySearch(ctx context.Context, q Queryer, chatID string, vector []float32, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := q.QueryContext(ctx, `
		SELECT doc_id, id, chunk_index, chat_id, content, sent_by, sent_to, mentioned_ids, command, created_at, embedding
		FROM messages
		WHERE chat_id = ? AND embedding IS NOT NULL
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	type scored struct {
		msg   Message
		score float32
	}
	var candidates []scored

	for rows.Next() {
		var msg Message
		var mentioned string
		var blob []byte
		if err := rows.Scan(&msg.DocID, &msg.ID, &msg.ChunkIndex, &msg.ChatID, &msg.Content,
			&msg.SentBy, &msg.SentTo, &mentioned, &msg.Command, &msg.CreatedAt, &blob); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		json.Unmarshal([]byte(mentioned), &msg.MentionedIDs)

		stored := decodeFloat32s(blob)
		if len(stored) != len(vector) {
			continue // dimension mismatch, skip
		}
		msg.Embedding = stored
		candidates = append(candidates, scored{msg: msg, score: cosineSimilarity(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]Message, len(candidates))
	for i, c := range candidates {
		out[i] = c.msg
	}
	return out, nil
}

// DeleteByChat purges every fragment of a chat.
func (m *Messages) DeleteByChat(ctx context.Context, q Queryer, chatID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	return nil
}

// CountByChat returns the number of fragments stored for a chat.
func (m *Messages) CountByChat(ctx context.Context, q Queryer, chatID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE chat_id = ?`, chatID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chat messages: %w", err)
	}
	return n, nil
}

func scanMessages(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var msg Message
		var mentioned string
		if err := rows.Scan(&msg.DocID, &msg.ID, &msg.ChunkIndex, &msg.ChatID, &msg.Content,
			&msg.SentBy, &msg.SentTo, &mentioned, &msg.Command, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		json.Unmarshal([]byte(mentioned), &msg.MentionedIDs)
		out = append(out, msg)
	}
	return out, rows.Err()
}

// encodeFloat32s converts a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s converts little-endian bytes back to a float32 slice.
func decodeFloat32s(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}
