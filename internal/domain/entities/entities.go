// Package entities contains core business entities.
// Pure domain objects with no external dependencies.
package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Role tags the speaker of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one message in a conversation. Turns are values and are never
// modified after creation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn builds a user turn.
func UserTurn(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// AssistantTurn builds an assistant turn.
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// SystemTurn builds a system turn.
func SystemTurn(content string) Turn { return Turn{Role: RoleSystem, Content: content} }

// Route records which path produced a response.
type Route string

const (
	RouteChat      Route = "chat"
	RouteRetrieval Route = "retrieval"
)

// Document represents a knowledge-base source document (TXT, MD).
type Document struct {
	ID        string
	Name      string
	Path      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is a passage of a document stored in the vector index.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string // Document name
	Content    string
	Index      int       // Position in document
	Embedding  []float32 // Populated by the embedding adapter
}

// QueryResult is a ranked passage returned by the vector index.
type QueryResult struct {
	Chunk     Chunk
	Score     float64 // Cosine similarity
	SourceDoc string  // Document name for citation
}

// ChatResponse is the assistant's answer for one turn.
type ChatResponse struct {
	Answer  string        `json:"answer"`
	Route   Route         `json:"route"`
	Sources []QueryResult `json:"-"`
}

// DocumentID derives the stable identifier of a document from its path.
func DocumentID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}
