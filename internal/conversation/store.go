package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
)

// Row shapes returned by the Querier. Kept flat so mock queriers in tests
// can construct them directly.
type (
	// ConversationRow is the stored conversation header plus its internal key.
	ConversationRow struct {
		ID        int64
		UID       string
		Name      string
		StartTime time.Time
	}

	// TurnRow is one persisted exchange record.
	TurnRow struct {
		ID        int64
		Body      []byte // JSON {"U": ..., "A": ...}
		CreatedAt time.Time
	}
)

// Querier defines the database operations the Store needs. The interface is
// defined here, on the consumer side; postgres.go provides the pgx-backed
// implementation and tests substitute mocks.
type Querier interface {
	// InsertConversation creates a conversation row and returns it.
	InsertConversation(ctx context.Context, uid, ownerID string, class IdentityClass, name string) (ConversationRow, error)

	// GetConversation resolves an external id scoped to its owner.
	// Must return pgx.ErrNoRows (or any error) when absent; the Store maps
	// absence to ErrNotFound.
	GetConversation(ctx context.Context, uid, ownerID string, class IdentityClass) (ConversationRow, bool, error)

	// InsertTurn appends one exchange record to a conversation.
	InsertTurn(ctx context.Context, conversationID int64, body []byte) error

	// RecentTurns returns the most recent limit records, newest first.
	RecentTurns(ctx context.Context, conversationID int64, limit int32) ([]TurnRow, error)

	// AllTurns returns every record in creation order.
	AllTurns(ctx context.Context, conversationID int64) ([]TurnRow, error)

	// ListConversations returns the owner's conversation headers, newest first.
	ListConversations(ctx context.Context, ownerID string, class IdentityClass) ([]ConversationRow, error)
}

// Store persists conversations and message pairs and enforces the
// sliding-history-window read policy.
//
// Store is safe for concurrent use; reads and writes for different
// conversations are independent.
type Store struct {
	querier Querier
	logger  log.Logger
}

// New creates a Store backed by the given querier.
func New(querier Querier, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{querier: querier, logger: logger}
}

// Create starts a new, empty conversation owned by the given identity and
// returns its external handle. The display name is assigned by the caller
// (see chat.TitleGenerator); an empty name is allowed.
func (s *Store) Create(ctx context.Context, owner Identity, name string) (*Conversation, error) {
	uid := uuid.NewString()

	row, err := s.querier.InsertConversation(ctx, uid, owner.ID, owner.Class, name)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("created conversation", "uid", row.UID, "owner", owner.ID)
	return &Conversation{UID: row.UID, Name: row.Name, StartTime: row.StartTime}, nil
}

// Get resolves a conversation by external id, scoped to its owner.
// Returns ErrNotFound for unknown or foreign ids.
func (s *Store) Get(ctx context.Context, uid string, owner Identity) (*Conversation, error) {
	row, ok, err := s.querier.GetConversation(ctx, uid, owner.ID, owner.Class)
	if err != nil {
		return nil, fmt.Errorf("looking up conversation %s: %w", uid, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &Conversation{UID: row.UID, Name: row.Name, StartTime: row.StartTime}, nil
}

// AppendTurn persists one completed exchange as a single record holding both
// sides. Returns ErrNotFound when the conversation does not exist for this
// owner.
func (s *Store) AppendTurn(ctx context.Context, uid string, owner Identity, turn HistoryTurn) error {
	row, ok, err := s.querier.GetConversation(ctx, uid, owner.ID, owner.Class)
	if err != nil {
		return fmt.Errorf("looking up conversation %s: %w", uid, err)
	}
	if !ok {
		return ErrNotFound
	}

	body, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshaling turn: %w", err)
	}

	if err := s.querier.InsertTurn(ctx, row.ID, body); err != nil {
		return fmt.Errorf("appending turn to %s: %w", uid, err)
	}

	s.logger.Debug("appended turn", "uid", uid, "user_len", len(turn.User), "assistant_len", len(turn.Assistant))
	return nil
}

// ReadRecentTurns returns the limit most recently appended turns in
// chronological (append) order: the oldest turn of the window first, the
// newest last. Older turns stay persisted but are not resurfaced, which
// bounds prompt size regardless of conversation length.
func (s *Store) ReadRecentTurns(ctx context.Context, uid string, owner Identity, limit int32) ([]HistoryTurn, error) {
	row, ok, err := s.querier.GetConversation(ctx, uid, owner.ID, owner.Class)
	if err != nil {
		return nil, fmt.Errorf("looking up conversation %s: %w", uid, err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	rows, err := s.querier.RecentTurns(ctx, row.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading recent turns of %s: %w", uid, err)
	}

	// The querier returns newest first; reverse into append order.
	turns := make([]HistoryTurn, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		turn, err := decodeTurn(rows[i].Body)
		if err != nil {
			s.logger.Warn("skipping malformed turn record", "uid", uid, "turn_id", rows[i].ID, "error", err)
			continue
		}
		turns = append(turns, turn)
	}

	return turns, nil
}

// Transcript returns the full transcript in append order.
func (s *Store) Transcript(ctx context.Context, uid string, owner Identity) (*Conversation, []HistoryTurn, error) {
	row, ok, err := s.querier.GetConversation(ctx, uid, owner.ID, owner.Class)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up conversation %s: %w", uid, err)
	}
	if !ok {
		return nil, nil, ErrNotFound
	}

	rows, err := s.querier.AllTurns(ctx, row.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("reading transcript of %s: %w", uid, err)
	}

	turns := make([]HistoryTurn, 0, len(rows))
	for _, r := range rows {
		turn, err := decodeTurn(r.Body)
		if err != nil {
			s.logger.Warn("skipping malformed turn record", "uid", uid, "turn_id", r.ID, "error", err)
			continue
		}
		turns = append(turns, turn)
	}

	return &Conversation{UID: row.UID, Name: row.Name, StartTime: row.StartTime}, turns, nil
}

// List returns the owner's conversations, most recent first.
func (s *Store) List(ctx context.Context, owner Identity) ([]Conversation, error) {
	rows, err := s.querier.ListConversations(ctx, owner.ID, owner.Class)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	out := make([]Conversation, 0, len(rows))
	for _, r := range rows {
		out = append(out, Conversation{UID: r.UID, Name: r.Name, StartTime: r.StartTime})
	}
	return out, nil
}

func decodeTurn(body []byte) (HistoryTurn, error) {
	var turn HistoryTurn
	if err := json.Unmarshal(body, &turn); err != nil {
		return HistoryTurn{}, fmt.Errorf("decoding turn record: %w", err)
	}
	return turn, nil
}
