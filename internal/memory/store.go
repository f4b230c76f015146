package memory

import (
	"context"
	"errors"
)

// Sentinel errors returned by store implementations.
var (
	// ErrFactNotFound is returned when a delete or lookup targets a fact
	// that does not exist.
	ErrFactNotFound = errors.New("memory: fact not found")

	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("memory: job not found")

	// ErrInvalidRole is returned by SaveMessage for an unknown role tag.
	ErrInvalidRole = errors.New("memory: invalid message role")
)

// ConversationStore owns the Message lifecycle: append-only writes,
// ordered reads, and the single bulk clear operation.
// Implementations must be safe for concurrent use.
type ConversationStore interface {
	// AppendMessage persists a message and returns its assigned id.
	// IDs are monotonic and assigned on write.
	AppendMessage(ctx context.Context, role Role, content string, tokenCount int) (int64, error)

	// RecentMessages returns the most recent limit messages in ascending
	// id order. An empty conversation yields an empty slice.
	RecentMessages(ctx context.Context, limit int) ([]Message, error)

	// MessagesBetween returns messages with startID <= id <= endID in
	// ascending id order.
	MessagesBetween(ctx context.Context, startID, endID int64) ([]Message, error)

	// MessageCount returns the number of stored messages.
	MessageCount(ctx context.Context) (int, error)

	// ClearConversation deletes all messages and all summaries.
	// Facts are untouched.
	ClearConversation(ctx context.Context) error
}

// FactStore owns the Fact lifecycle and keeps the lexical index in sync
// with every mutation. Implementations must be safe for concurrent use.
type FactStore interface {
	// SaveFact upserts by (category, subject): on conflict the content and
	// updated_at change in place and the id is kept. Returns the fact row.
	SaveFact(ctx context.Context, category, subject, content string) (Fact, error)

	// Fact returns the fact with the given id, or ErrFactNotFound.
	Fact(ctx context.Context, id int64) (Fact, error)

	// FactsByID returns the facts for the given ids, omitting missing ones.
	FactsByID(ctx context.Context, ids []int64) ([]Fact, error)

	// AllFacts returns every fact ordered by category then subject.
	AllFacts(ctx context.Context) ([]Fact, error)

	// DeleteFact removes a fact and its chunk. Returns ErrFactNotFound if
	// the id does not exist.
	DeleteFact(ctx context.Context, id int64) error

	// DeleteFactBySubject removes the fact for (category, subject).
	// Returns ErrFactNotFound if no such fact exists.
	DeleteFactBySubject(ctx context.Context, category, subject string) error

	// SearchFacts is the substring fallback: case-insensitive match across
	// content, subject, and category, optionally restricted to a category.
	SearchFacts(ctx context.Context, query, category string) ([]Fact, error)

	// SearchLexical runs a ranked full-text query and returns raw index
	// ranks for the hybrid engine to normalize.
	SearchLexical(ctx context.Context, query string, limit int) ([]LexicalMatch, error)

	// RebuildIndex repopulates the lexical index from the fact table.
	// Used as the recovery path when the index is empty while facts exist.
	RebuildIndex(ctx context.Context) error

	// FactCount returns the number of stored facts.
	FactCount(ctx context.Context) (int, error)
}

// ChunkStore owns the embedding cache rows. A fact has at most one chunk.
type ChunkStore interface {
	// ReplaceChunk deletes any prior chunk for the fact and inserts the
	// new one.
	ReplaceChunk(ctx context.Context, factID int64, content string, embedding []byte) error

	// RecentChunks returns up to limit chunks, most recent first.
	RecentChunks(ctx context.Context, limit int) ([]Chunk, error)

	// FactsWithoutChunks returns facts that have no embedding chunk yet,
	// in ascending id order. Used by the backfill pass.
	FactsWithoutChunks(ctx context.Context) ([]Fact, error)

	// ChunkCount returns the number of stored chunks.
	ChunkCount(ctx context.Context) (int, error)
}

// SummaryStore owns Summary rows for the summarization pipeline.
type SummaryStore interface {
	// SaveSummary persists a summary and returns its id.
	SaveSummary(ctx context.Context, s Summary) (int64, error)

	// SummaryByEnd returns the summary whose range ends exactly at endID,
	// or nil if none exists.
	SummaryByEnd(ctx context.Context, endID int64) (*Summary, error)

	// LatestSummaryBefore returns the summary with the largest
	// end_message_id strictly below endID, or nil if none exists.
	LatestSummaryBefore(ctx context.Context, endID int64) (*Summary, error)

	// PruneSummaries keeps only the keep most recent summaries by
	// end_message_id and deletes the rest.
	PruneSummaries(ctx context.Context, keep int) error

	// SummaryCount returns the number of stored summaries.
	SummaryCount(ctx context.Context) (int, error)
}

// JobStore owns the persisted scheduler job table.
type JobStore interface {
	CreateJob(ctx context.Context, j Job) (int64, error)
	Jobs(ctx context.Context) ([]Job, error)
	SetJobEnabled(ctx context.Context, id int64, enabled bool) error
	DeleteJob(ctx context.Context, id int64) error
	JobCount(ctx context.Context) (int, error)
}
