// Package memory defines the domain model and store contracts for the
// persistent memory engine: the append-only conversation log, the canonical
// fact table with its lexical index, per-fact embedding chunks, cascading
// summaries, and the persisted scheduler jobs.
package memory

import "time"

// Role tags the author of a conversation message.
type Role string

// Valid message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known role tags.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single conversation turn. Messages are immutable once
// written; they are only ever removed in bulk by ClearConversation.
type Message struct {
	ID         int64
	Role       Role
	Content    string
	TokenCount int
	CreatedAt  time.Time
}

// Fact is a durable (category, subject, content) triple representing
// long-term knowledge. At most one fact exists per (category, subject);
// saving to an existing pair updates content in place and keeps the id.
type Fact struct {
	ID        int64
	Category  string
	Subject   string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is the embedded-text unit for one fact. At most one live chunk
// exists per fact; re-embedding replaces the prior chunk. The embedding is
// a contiguous little-endian float32 byte sequence (4 bytes per dimension).
type Chunk struct {
	ID        int64
	FactID    int64
	Content   string
	Embedding []byte
	CreatedAt time.Time
}

// Summary is a compact textual replacement for the closed, contiguous
// message-id range [StartMessageID, EndMessageID].
type Summary struct {
	ID             int64
	StartMessageID int64
	EndMessageID   int64
	Content        string
	TokenCount     int
	CreatedAt      time.Time
}

// Job is a persisted scheduler entry. Trigger and execution logic live
// outside the memory engine; this is only the storage contract.
type Job struct {
	ID        int64
	Name      string
	Schedule  string
	Prompt    string
	Channel   string
	Enabled   bool
	CreatedAt time.Time
}

// SearchResult pairs a fact with its combined relevance score in [0, ~1].
type SearchResult struct {
	Fact  Fact
	Score float64
}

// LexicalMatch is one ranked hit from the full-text index. Rank is the raw
// index relevance value; more negative means more relevant under bm25.
type LexicalMatch struct {
	FactID int64
	Rank   float64
}

// Stats is a point-in-time view of stored state for the status surface.
type Stats struct {
	Messages  int `json:"messages"`
	Facts     int `json:"facts"`
	Chunks    int `json:"chunks"`
	Summaries int `json:"summaries"`
	Jobs      int `json:"jobs"`
}

// GraphNode is a visualization node derived from one fact.
type GraphNode struct {
	ID       int64  `json:"id"`
	Label    string `json:"label"`
	Category string `json:"category"`
	Group    int    `json:"group"`
}

// LinkType classifies an edge in the relationship graph.
type LinkType string

// Edge types produced by the graph builder.
const (
	LinkCategory LinkType = "category"
	LinkSemantic LinkType = "semantic"
	LinkKeyword  LinkType = "keyword"
)

// GraphLink is a typed, weighted, undirected edge between two facts.
// Source < Target always holds; the builder never emits self edges or
// duplicate (source, target, type) triples.
type GraphLink struct {
	Source   int64    `json:"source"`
	Target   int64    `json:"target"`
	Type     LinkType `json:"type"`
	Strength float64  `json:"strength"`
}

// Graph is the derived node/link set. It is never persisted.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}
