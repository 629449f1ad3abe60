// Package domain holds the core entities of the claim verification pipeline:
// messages, claim clusters, verdicts, evidence, and sightings.
package domain

import "time"

// ClaimStatus is the closed set of verdict states for a claim cluster.
type ClaimStatus string

// Claim status constants.
const (
	StatusUnknown       ClaimStatus = "UNKNOWN"
	StatusTrue          ClaimStatus = "TRUE"
	StatusFalse         ClaimStatus = "FALSE"
	StatusMisleading    ClaimStatus = "MISLEADING"
	StatusUnverifiable  ClaimStatus = "UNVERIFIABLE"
	StatusPartiallyTrue ClaimStatus = "PARTIALLY_TRUE"
)

// ParseClaimStatus maps a raw string to a ClaimStatus.
// Unrecognized values map to StatusUnknown.
func ParseClaimStatus(s string) ClaimStatus {
	switch ClaimStatus(s) {
	case StatusTrue, StatusFalse, StatusMisleading, StatusUnverifiable, StatusPartiallyTrue, StatusUnknown:
		return ClaimStatus(s)
	default:
		return StatusUnknown
	}
}

// IsTerminal reports whether the status represents a completed verification.
func (s ClaimStatus) IsTerminal() bool {
	return s != StatusUnknown
}

// MessageSource identifies where a message originated.
type MessageSource string

// Message source constants.
const (
	SourceWebForm      MessageSource = "web_form"
	SourceTelegram     MessageSource = "telegram"
	SourceDiscord      MessageSource = "discord"
	SourceWhatsAppMock MessageSource = "whatsapp_mock"
	SourceAPI          MessageSource = "api"
)

// ValidSource reports whether s is one of the accepted message sources.
func ValidSource(s MessageSource) bool {
	switch s {
	case SourceWebForm, SourceTelegram, SourceDiscord, SourceWhatsAppMock, SourceAPI:
		return true
	default:
		return false
	}
}

// MessageMeta carries optional provenance attached to an ingested message.
type MessageMeta struct {
	ChatID           string
	UserID           string
	ReplyToMessageID string
	PlatformSpecific map[string]any
}

// Message is a received text plus its provenance. Immutable once stored;
// after processing it carries the claim flag, canonical snapshot, and
// cluster reference.
type Message struct {
	ID            int64
	Text          string
	Source        MessageSource
	Meta          *MessageMeta
	Language      string
	IsClaim       bool
	CanonicalText string
	Embedding     []float32
	ClusterID     *int64
	CreatedAt     time.Time
}

// Cluster is a set of messages judged to express the same claim.
type Cluster struct {
	ID            int64
	CanonicalText string
	Topic         string
	Status        ClaimStatus
	MessageCount  int
	Centroid      []float32
	FirstSeenAt   time.Time
	LastSeenAt    time.Time
}

// EvidenceItem is one web search hit used during verification.
// PublishedAt is zero when the search result carried no date.
type EvidenceItem struct {
	URL         string
	Domain      string
	Title       string
	Snippet     string
	Score       float32
	PublishedAt time.Time
	RetrievedAt time.Time
}

// Verdict is the verification outcome for a cluster. VerifiedAt is nil
// exactly when Status is UNKNOWN.
type Verdict struct {
	ID         int64
	ClusterID  int64
	Status     ClaimStatus
	Confidence float32
	ShortReply string
	LongReply  string
	Sources    []EvidenceItem
	Snippets   []string
	VerifiedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Sighting records one observation of a claim cluster. Append-only.
type Sighting struct {
	ID        int64
	ClusterID int64
	Source    MessageSource
	ChatID    string
	UserID    string
	SeenAt    time.Time
}

// GraphEdge is an undirected weighted relationship between two clusters.
// Repeated insertions of the same pair accumulate weight.
type GraphEdge struct {
	SourceClusterID int64
	TargetClusterID int64
	Relationship    string
	Weight          float64
}

// RelationshipRelated is the default edge relationship tag.
const RelationshipRelated = "related_to"
