package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"retroboard/api/internal/board"
)

// PostgresStore implements board.Store over the relational schema in
// db/migrations. Each key type maps onto one table row or column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Write(ctx context.Context, key board.Key, value any) error {
	if err := board.ValidateKey(key); err != nil {
		return err
	}

	switch k := key.(type) {
	case board.BoardKey:
		settings, ok := value.(board.Settings)
		if !ok {
			return typeError(key, value)
		}
		createdAt := settings.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO boards (id, title, phase, mode, multiple_votes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, phase=EXCLUDED.phase,
				mode=EXCLUDED.mode, multiple_votes=EXCLUDED.multiple_votes
		`, k.BoardID, settings.Title, settings.Phase, settings.Mode, settings.MultipleVotes, createdAt)
		if err != nil {
			return fmt.Errorf("upsert board: %w", err)
		}
		return nil

	case board.ColumnKey:
		col, ok := value.(board.Column)
		if !ok {
			return typeError(key, value)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO board_columns (board_id, id, title, position)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (board_id, id) DO UPDATE SET title=EXCLUDED.title, position=EXCLUDED.position
		`, k.BoardID, k.ColumnID, col.Title, col.Position)
		if err != nil {
			return fmt.Errorf("upsert column: %w", err)
		}
		return nil

	case board.CardKey:
		card, ok := value.(board.Card)
		if !ok {
			return typeError(key, value)
		}
		return s.writeCard(ctx, k, card)

	case board.VotesKey:
		votes, ok := value.(int)
		if !ok {
			return typeError(key, value)
		}
		return s.updateCard(ctx, k.Card, "votes", votes)

	case board.CardGroupKey:
		groupID, ok := value.(string)
		if !ok {
			return typeError(key, value)
		}
		return s.updateCard(ctx, k.Card, "group_id", nullString(groupID))

	case board.VoterKey:
		vote, ok := value.(int)
		if !ok {
			return typeError(key, value)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO card_voters (board_id, card_id, user_id, vote)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (board_id, card_id, user_id) DO UPDATE SET vote=EXCLUDED.vote
		`, k.Card.BoardID, k.Card.CardID, k.UserID, vote)
		if err != nil {
			return fmt.Errorf("upsert voter: %w", err)
		}
		return nil

	case board.GroupKey:
		group, ok := value.(board.Group)
		if !ok {
			return typeError(key, value)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO card_groups (board_id, id, column_id, name, votes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (board_id, id) DO UPDATE SET column_id=EXCLUDED.column_id,
				name=EXCLUDED.name, votes=EXCLUDED.votes, created_at=EXCLUDED.created_at
		`, k.BoardID, k.GroupID, k.ColumnID, group.Name, group.Votes, group.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert group: %w", err)
		}
		return nil

	case board.CommentKey:
		comment, ok := value.(board.Comment)
		if !ok {
			return typeError(key, value)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO card_comments (board_id, card_id, id, author, content, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (board_id, card_id, id) DO UPDATE SET content=EXCLUDED.content
		`, k.Card.BoardID, k.Card.CardID, k.CommentID, comment.Author, comment.Content, comment.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert comment: %w", err)
		}
		return nil

	case board.ReactionKey:
		reaction, ok := value.(board.Reaction)
		if !ok {
			return typeError(key, value)
		}
		users, err := json.Marshal(nonNilUsers(reaction.Users))
		if err != nil {
			return fmt.Errorf("marshal reaction users: %w", err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO card_reactions (board_id, card_id, emoji, count, users)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (board_id, card_id, emoji) DO UPDATE SET count=EXCLUDED.count, users=EXCLUDED.users
		`, k.Card.BoardID, k.Card.CardID, k.Emoji, reaction.Count, string(users))
		if err != nil {
			return fmt.Errorf("upsert reaction: %w", err)
		}
		return nil
	}

	return fmt.Errorf("%w: unsupported key %T", board.ErrValidation, key)
}

// writeCard stores the card row at the key's column together with its voter,
// comment and reaction children. Writing an existing card id at another
// column moves the row.
func (s *PostgresStore) writeCard(ctx context.Context, key board.CardKey, card board.Card) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin card tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := card.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cards (board_id, id, column_id, content, votes, group_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (board_id, id) DO UPDATE SET column_id=EXCLUDED.column_id, content=EXCLUDED.content,
			votes=EXCLUDED.votes, group_id=EXCLUDED.group_id, created_by=EXCLUDED.created_by,
			created_at=EXCLUDED.created_at
	`, key.BoardID, key.CardID, key.ColumnID, card.Content, card.Votes, nullString(card.GroupID), card.CreatedBy, createdAt); err != nil {
		return fmt.Errorf("upsert card: %w", err)
	}

	for _, table := range []string{"card_voters", "card_comments", "card_reactions"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE board_id=$1 AND card_id=$2`, key.BoardID, key.CardID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for userID, vote := range card.Voters {
		if vote == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO card_voters (board_id, card_id, user_id, vote) VALUES ($1, $2, $3, $4)
		`, key.BoardID, key.CardID, userID, vote); err != nil {
			return fmt.Errorf("insert voter: %w", err)
		}
	}
	for id, comment := range card.Comments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO card_comments (board_id, card_id, id, author, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)
		`, key.BoardID, key.CardID, id, comment.Author, comment.Content, comment.CreatedAt); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
	}
	for emoji, reaction := range card.Reactions {
		users, err := json.Marshal(nonNilUsers(reaction.Users))
		if err != nil {
			return fmt.Errorf("marshal reaction users: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO card_reactions (board_id, card_id, emoji, count, users) VALUES ($1, $2, $3, $4, $5)
		`, key.BoardID, key.CardID, emoji, reaction.Count, string(users)); err != nil {
			return fmt.Errorf("insert reaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit card tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) updateCard(ctx context.Context, key board.CardKey, column string, value any) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cards SET `+column+`=$4 WHERE board_id=$1 AND id=$2 AND column_id=$3
	`, key.BoardID, key.CardID, key.ColumnID, value)
	if err != nil {
		return fmt.Errorf("update card %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update card %s: %w", column, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", board.ErrCardNotFound, key.Path())
	}
	return nil
}

// Erase deletes the node at key. Card rows are only removed while they still
// live in the key's column, so erasing the source of a move is a no-op.
func (s *PostgresStore) Erase(ctx context.Context, key board.Key) error {
	if err := board.ValidateKey(key); err != nil {
		return err
	}

	var (
		query string
		args  []any
	)
	switch k := key.(type) {
	case board.BoardKey:
		query, args = `DELETE FROM boards WHERE id=$1`, []any{k.BoardID}
	case board.ColumnKey:
		query, args = `DELETE FROM board_columns WHERE board_id=$1 AND id=$2`, []any{k.BoardID, k.ColumnID}
	case board.CardKey:
		query, args = `DELETE FROM cards WHERE board_id=$1 AND id=$2 AND column_id=$3`, []any{k.BoardID, k.CardID, k.ColumnID}
	case board.VotesKey:
		query, args = `UPDATE cards SET votes=0 WHERE board_id=$1 AND id=$2 AND column_id=$3`, []any{k.Card.BoardID, k.Card.CardID, k.Card.ColumnID}
	case board.CardGroupKey:
		query, args = `UPDATE cards SET group_id=NULL WHERE board_id=$1 AND id=$2 AND column_id=$3`, []any{k.Card.BoardID, k.Card.CardID, k.Card.ColumnID}
	case board.VoterKey:
		query, args = `DELETE FROM card_voters WHERE board_id=$1 AND card_id=$2 AND user_id=$3`, []any{k.Card.BoardID, k.Card.CardID, k.UserID}
	case board.GroupKey:
		query, args = `DELETE FROM card_groups WHERE board_id=$1 AND id=$2 AND column_id=$3`, []any{k.BoardID, k.GroupID, k.ColumnID}
	case board.CommentKey:
		query, args = `DELETE FROM card_comments WHERE board_id=$1 AND card_id=$2 AND id=$3`, []any{k.Card.BoardID, k.Card.CardID, k.CommentID}
	case board.ReactionKey:
		query, args = `DELETE FROM card_reactions WHERE board_id=$1 AND card_id=$2 AND emoji=$3`, []any{k.Card.BoardID, k.Card.CardID, k.Emoji}
	default:
		return fmt.Errorf("%w: unsupported key %T", board.ErrValidation, key)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("erase %s: %w", key.Path(), err)
	}
	return nil
}

// LoadBoard reads a full board snapshot.
func (s *PostgresStore) LoadBoard(ctx context.Context, boardID string) (board.Board, error) {
	b := board.Board{ID: boardID, Columns: map[string]board.Column{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT title, phase, mode, multiple_votes, created_at FROM boards WHERE id=$1
	`, boardID).Scan(&b.Title, &b.Phase, &b.Mode, &b.MultipleVotes, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return board.Board{}, fmt.Errorf("%w: %s", board.ErrBoardNotFound, boardID)
	}
	if err != nil {
		return board.Board{}, fmt.Errorf("get board: %w", err)
	}

	if err := s.loadColumns(ctx, &b); err != nil {
		return board.Board{}, err
	}
	if err := s.loadCards(ctx, &b); err != nil {
		return board.Board{}, err
	}
	if err := s.loadGroups(ctx, &b); err != nil {
		return board.Board{}, err
	}
	if err := s.loadCardChildren(ctx, &b); err != nil {
		return board.Board{}, err
	}
	return b, nil
}

func (s *PostgresStore) loadColumns(ctx context.Context, b *board.Board) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, position FROM board_columns WHERE board_id=$1
	`, b.ID)
	if err != nil {
		return fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		col := board.Column{Cards: map[string]board.Card{}, Groups: map[string]board.Group{}}
		if err := rows.Scan(&col.ID, &col.Title, &col.Position); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		b.Columns[col.ID] = col
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate columns: %w", err)
	}
	return nil
}

func (s *PostgresStore) loadCards(ctx context.Context, b *board.Board) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, column_id, content, votes, COALESCE(group_id, ''), created_by, created_at
		FROM cards WHERE board_id=$1
	`, b.ID)
	if err != nil {
		return fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			card     board.Card
			columnID string
		)
		if err := rows.Scan(&card.ID, &columnID, &card.Content, &card.Votes, &card.GroupID, &card.CreatedBy, &card.CreatedAt); err != nil {
			return fmt.Errorf("scan card: %w", err)
		}
		col, ok := b.Columns[columnID]
		if !ok {
			continue
		}
		card.Voters = map[string]int{}
		card.Comments = map[string]board.Comment{}
		card.Reactions = map[string]board.Reaction{}
		col.Cards[card.ID] = card
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate cards: %w", err)
	}
	return nil
}

func (s *PostgresStore) loadGroups(ctx context.Context, b *board.Board) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, column_id, name, votes, created_at FROM card_groups WHERE board_id=$1
	`, b.ID)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			group    board.Group
			columnID string
		)
		if err := rows.Scan(&group.ID, &columnID, &group.Name, &group.Votes, &group.CreatedAt); err != nil {
			return fmt.Errorf("scan group: %w", err)
		}
		if col, ok := b.Columns[columnID]; ok {
			col.Groups[group.ID] = group
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate groups: %w", err)
	}
	return nil
}

// loadCardChildren attaches voters, comments and reactions to the cards
// already placed in b.
func (s *PostgresStore) loadCardChildren(ctx context.Context, b *board.Board) error {
	index := make(map[string]string)
	for columnID, col := range b.Columns {
		for cardID := range col.Cards {
			index[cardID] = columnID
		}
	}
	withCard := func(cardID string, fn func(*board.Card)) {
		columnID, ok := index[cardID]
		if !ok {
			return
		}
		card := b.Columns[columnID].Cards[cardID]
		fn(&card)
		b.Columns[columnID].Cards[cardID] = card
	}

	voterRows, err := s.db.QueryContext(ctx, `SELECT card_id, user_id, vote FROM card_voters WHERE board_id=$1`, b.ID)
	if err != nil {
		return fmt.Errorf("list voters: %w", err)
	}
	defer voterRows.Close()
	for voterRows.Next() {
		var (
			cardID, userID string
			vote           int
		)
		if err := voterRows.Scan(&cardID, &userID, &vote); err != nil {
			return fmt.Errorf("scan voter: %w", err)
		}
		withCard(cardID, func(c *board.Card) { c.Voters[userID] = vote })
	}
	if err := voterRows.Err(); err != nil {
		return fmt.Errorf("iterate voters: %w", err)
	}

	commentRows, err := s.db.QueryContext(ctx, `
		SELECT card_id, id, author, content, created_at FROM card_comments WHERE board_id=$1
	`, b.ID)
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}
	defer commentRows.Close()
	for commentRows.Next() {
		var (
			cardID  string
			comment board.Comment
		)
		if err := commentRows.Scan(&cardID, &comment.ID, &comment.Author, &comment.Content, &comment.CreatedAt); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		withCard(cardID, func(c *board.Card) { c.Comments[comment.ID] = comment })
	}
	if err := commentRows.Err(); err != nil {
		return fmt.Errorf("iterate comments: %w", err)
	}

	reactionRows, err := s.db.QueryContext(ctx, `
		SELECT card_id, emoji, count, users FROM card_reactions WHERE board_id=$1
	`, b.ID)
	if err != nil {
		return fmt.Errorf("list reactions: %w", err)
	}
	defer reactionRows.Close()
	for reactionRows.Next() {
		var (
			cardID, emoji string
			reaction      board.Reaction
			rawUsers      []byte
		)
		if err := reactionRows.Scan(&cardID, &emoji, &reaction.Count, &rawUsers); err != nil {
			return fmt.Errorf("scan reaction: %w", err)
		}
		if err := json.Unmarshal(rawUsers, &reaction.Users); err != nil {
			return fmt.Errorf("decode reaction users: %w", err)
		}
		withCard(cardID, func(c *board.Card) { c.Reactions[emoji] = reaction })
	}
	if err := reactionRows.Err(); err != nil {
		return fmt.Errorf("iterate reactions: %w", err)
	}
	return nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nonNilUsers(users []string) []string {
	if users == nil {
		return []string{}
	}
	return users
}

func typeError(key board.Key, value any) error {
	return fmt.Errorf("%w: %s got %T", board.ErrValueType, key.Path(), value)
}
