package match

import (
	"context"
	"database/sql"
	"time"

	"github.com/velvetlane/matchroom/internal/modules/core"
	"github.com/velvetlane/matchroom/internal/modules/match/domain"

	"github.com/eskrenkovic/tql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const pqUniqueViolation = "23505"

// errDuplicateMatch signals that the conditional insert lost to an existing
// open match for the same (origin, pair) key.
var errDuplicateMatch = errors.New("open match already exists for origin and pair")

// Repository is the Postgres MatchStore. Every shared-state mutation is a
// conditional statement or runs inside a transaction holding the match row
// lock, so racing callers serialize at the database.
type Repository struct {
	db *sql.DB
}

var _ domain.MatchStore = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db}
}

type matchRecord struct {
	ID          uuid.UUID      `db:"id"`
	OriginKind  string         `db:"origin_kind"`
	OriginRefID string         `db:"origin_ref_id"`
	CreatorID   uuid.UUID      `db:"creator_id"`
	Status      string         `db:"status"`
	ExpiresAt   time.Time      `db:"expires_at"`
	RoomID      sql.NullString `db:"room_id"`
	AlertsSent  pq.Int64Array  `db:"alerts_sent"`
	PairKey     string         `db:"pair_key"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r matchRecord) toDomain() domain.Match {
	alerts := make([]int, 0, len(r.AlertsSent))
	for _, threshold := range r.AlertsSent {
		alerts = append(alerts, int(threshold))
	}

	return domain.Match{
		ID:         r.ID,
		Origin:     domain.Origin{Kind: r.OriginKind, RefID: r.OriginRefID},
		CreatorID:  r.CreatorID,
		Status:     domain.MatchStatus(r.Status),
		ExpiresAt:  r.ExpiresAt,
		RoomID:     r.RoomID.String,
		AlertsSent: alerts,
		PairKey:    r.PairKey,
		CreatedAt:  r.CreatedAt,
	}
}

type participantRecord struct {
	MatchID  uuid.UUID `db:"match_id"`
	UserID   uuid.UUID `db:"user_id"`
	Position int       `db:"position"`
	JoinedAt time.Time `db:"joined_at"`
}

func (r *Repository) CreateMatch(
	ctx context.Context,
	match domain.Match,
	createRoom func(context.Context) (string, error),
) (domain.Match, bool, error) {
	record := matchRecord{
		ID:          match.ID,
		OriginKind:  match.Origin.Kind,
		OriginRefID: match.Origin.RefID,
		CreatorID:   match.CreatorID,
		Status:      string(match.Status),
		ExpiresAt:   match.ExpiresAt,
		AlertsSent:  pq.Int64Array{},
		PairKey:     match.PairKey,
		CreatedAt:   match.CreatedAt,
	}

	txFn := func(ctx context.Context, tx *sql.Tx) error {
		const insertStmt = `
			INSERT INTO
				matches (id, origin_kind, origin_ref_id, creator_id, status, expires_at, alerts_sent, pair_key, created_at)
			VALUES
				(:id, :origin_kind, :origin_ref_id, :creator_id, :status, :expires_at, :alerts_sent, :pair_key, :created_at)
			ON CONFLICT (origin_ref_id, pair_key) WHERE (status = 'open')
			DO NOTHING;`
		result, err := tql.Exec(ctx, tx, insertStmt, record)
		if err != nil {
			return err
		}

		inserted, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if inserted == 0 {
			return errDuplicateMatch
		}

		const participantStmt = `
			INSERT INTO
				match_participants (match_id, user_id, position, joined_at)
			VALUES
				(:match_id, :user_id, :position, :joined_at);`
		for i, participant := range match.Participants {
			p := participantRecord{
				MatchID:  match.ID,
				UserID:   participant.UserID,
				Position: i + 1,
				JoinedAt: match.CreatedAt,
			}
			if _, err := tql.Exec(ctx, tx, participantStmt, p); err != nil {
				return err
			}
		}

		// The room is requested while the insert transaction is open. A
		// gateway failure rolls the record back, so a match never lands
		// without a room and a failed attempt never leaks a record.
		roomID, err := createRoom(ctx)
		if err != nil {
			return errors.Wrap(err, "create room")
		}
		match.RoomID = roomID

		const roomStmt = `
			UPDATE
				matches
			SET
				room_id = $2
			WHERE
				id = $1;`
		_, err = tql.Exec(ctx, tx, roomStmt, match.ID, roomID)
		return err
	}

	err := core.Tx(ctx, r.db, txFn)
	switch {
	case errors.Is(err, errDuplicateMatch):
		existing, lookupErr := r.openMatchByPair(ctx, match.Origin, match.PairKey)
		if lookupErr != nil {
			// The winner closed or expired between our insert and this read.
			return domain.Match{}, false, domain.ErrConflict
		}
		return existing, false, nil
	case err != nil:
		return domain.Match{}, false, err
	}

	return match, true, nil
}

func (r *Repository) openMatchByPair(ctx context.Context, origin domain.Origin, pairKey string) (domain.Match, error) {
	const query = `
		SELECT
			*
		FROM
			matches
		WHERE
			origin_kind = $1 AND origin_ref_id = $2 AND pair_key = $3 AND status = 'open';`
	record, err := tql.QueryFirst[matchRecord](ctx, r.db, query, origin.Kind, origin.RefID, pairKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Match{}, domain.ErrNotFound
		}
		return domain.Match{}, err
	}

	match := record.toDomain()
	match.Participants, err = r.participants(ctx, match.ID)
	return match, err
}

func (r *Repository) GetMatch(ctx context.Context, id uuid.UUID) (domain.Match, error) {
	const query = `
		SELECT
			*
		FROM
			matches
		WHERE
			id = $1;`
	record, err := tql.QueryFirst[matchRecord](ctx, r.db, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Match{}, domain.ErrNotFound
		}
		return domain.Match{}, err
	}

	match := record.toDomain()
	match.Participants, err = r.participants(ctx, id)
	return match, err
}

func (r *Repository) participants(ctx context.Context, matchID uuid.UUID) ([]domain.Participant, error) {
	const query = `
		SELECT
			user_id, position, joined_at
		FROM
			match_participants
		WHERE
			match_id = $1
		ORDER BY
			position;`
	return tql.Query[domain.Participant](ctx, r.db, query, matchID)
}

func (r *Repository) CloseMatch(ctx context.Context, id uuid.UUID) error {
	const stmt = `
		UPDATE
			matches
		SET
			status = 'closed'
		WHERE
			id = $1 AND status <> 'closed';`
	_, err := tql.Exec(ctx, r.db, stmt, id)
	return err
}

func (r *Repository) RemoveParticipant(ctx context.Context, matchID, userID uuid.UUID) (bool, int, error) {
	var (
		removed   bool
		remaining int
	)

	txFn := func(ctx context.Context, tx *sql.Tx) error {
		// Lock the match row so removal and the cap-checked append in
		// AcceptInvite serialize on the same resource.
		const lockStmt = `
			SELECT
				id
			FROM
				matches
			WHERE
				id = $1
			FOR UPDATE;`
		if _, err := tql.QueryFirst[uuid.UUID](ctx, tx, lockStmt, matchID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}

		const deleteStmt = `
			DELETE FROM
				match_participants
			WHERE
				match_id = $1 AND user_id = $2;`
		result, err := tql.Exec(ctx, tx, deleteStmt, matchID, userID)
		if err != nil {
			return err
		}

		deleted, err := result.RowsAffected()
		if err != nil {
			return err
		}
		removed = deleted > 0

		const countQuery = `
			SELECT
				count(*)
			FROM
				match_participants
			WHERE
				match_id = $1;`
		remaining, err = tql.QuerySingle[int](ctx, tx, countQuery, matchID)
		return err
	}

	if err := core.Tx(ctx, r.db, txFn); err != nil {
		return false, 0, err
	}

	return removed, remaining, nil
}

func (r *Repository) RestoreMatch(ctx context.Context, id uuid.UUID, expiresAt time.Time) (bool, error) {
	const stmt = `
		UPDATE
			matches
		SET
			status = 'open', expires_at = $2, alerts_sent = '{}'
		WHERE
			id = $1 AND status = 'expired';`
	result, err := tql.Exec(ctx, r.db, stmt, id, expiresAt)
	if err != nil {
		return false, err
	}

	updated, err := result.RowsAffected()
	return updated > 0, err
}

func (r *Repository) ExpireMatch(ctx context.Context, id uuid.UUID) (bool, error) {
	const stmt = `
		UPDATE
			matches
		SET
			status = 'expired'
		WHERE
			id = $1 AND status = 'open';`
	result, err := tql.Exec(ctx, r.db, stmt, id)
	if err != nil {
		return false, err
	}

	updated, err := result.RowsAffected()
	return updated > 0, err
}

func (r *Repository) MarkAlertSent(ctx context.Context, id uuid.UUID, threshold int) (bool, error) {
	const stmt = `
		UPDATE
			matches
		SET
			alerts_sent = array_append(alerts_sent, $2)
		WHERE
			id = $1 AND status = 'open' AND NOT (alerts_sent @> ARRAY[$2]);`
	result, err := tql.Exec(ctx, r.db, stmt, id, threshold)
	if err != nil {
		return false, err
	}

	updated, err := result.RowsAffected()
	return updated > 0, err
}

func (r *Repository) NearExpiry(ctx context.Context, cutoff time.Time) ([]domain.Match, error) {
	const query = `
		SELECT
			*
		FROM
			matches
		WHERE
			status = 'open' AND expires_at <= $1
		ORDER BY
			expires_at;`
	records, err := tql.Query[matchRecord](ctx, r.db, query, cutoff)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.Match, 0, len(records))
	for _, record := range records {
		matches = append(matches, record.toDomain())
	}
	return matches, nil
}

func (r *Repository) CreateInvite(ctx context.Context, invite domain.Invite) error {
	const stmt = `
		INSERT INTO
			invites (id, match_id, inviter_id, invitee_id, status, created_at)
		VALUES
			(:id, :match_id, :inviter_id, :invitee_id, :status, :created_at);`
	if _, err := tql.Exec(ctx, r.db, stmt, invite); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *Repository) GetInvite(ctx context.Context, id uuid.UUID) (domain.Invite, error) {
	const query = `
		SELECT
			*
		FROM
			invites
		WHERE
			id = $1;`
	invite, err := tql.QueryFirst[domain.Invite](ctx, r.db, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Invite{}, domain.ErrNotFound
	}
	return invite, err
}

func (r *Repository) PendingInviteFor(ctx context.Context, matchID, inviteeID uuid.UUID) (domain.Invite, error) {
	const query = `
		SELECT
			*
		FROM
			invites
		WHERE
			match_id = $1 AND invitee_id = $2 AND status = 'pending';`
	invite, err := tql.QueryFirst[domain.Invite](ctx, r.db, query, matchID, inviteeID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Invite{}, domain.ErrNotFound
	}
	return invite, err
}

func (r *Repository) AcceptInvite(ctx context.Context, inviteID uuid.UUID) error {
	// The room-full outcome must both reject the invite and report the
	// capacity error, so the rejection write has to survive the transaction.
	var capacityExceeded bool

	txFn := func(ctx context.Context, tx *sql.Tx) error {
		const inviteQuery = `
			SELECT
				*
			FROM
				invites
			WHERE
				id = $1
			FOR UPDATE;`
		invite, err := tql.QueryFirst[domain.Invite](ctx, tx, inviteQuery, inviteID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}

		if invite.Status != domain.InviteStatusPending {
			return domain.ErrConflict
		}

		const matchQuery = `
			SELECT
				*
			FROM
				matches
			WHERE
				id = $1
			FOR UPDATE;`
		record, err := tql.QueryFirst[matchRecord](ctx, tx, matchQuery, invite.MatchID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}

		if domain.MatchStatus(record.Status) != domain.MatchStatusOpen {
			return domain.ErrInvalidState
		}

		const countQuery = `
			SELECT
				count(*)
			FROM
				match_participants
			WHERE
				match_id = $1;`
		count, err := tql.QuerySingle[int](ctx, tx, countQuery, invite.MatchID)
		if err != nil {
			return err
		}

		const inviteStmt = `
			UPDATE
				invites
			SET
				status = $2
			WHERE
				id = $1;`

		if count >= domain.ParticipantCap {
			if _, err := tql.Exec(ctx, tx, inviteStmt, inviteID, domain.InviteStatusRejected); err != nil {
				return err
			}
			capacityExceeded = true
			return nil
		}

		const participantStmt = `
			INSERT INTO
				match_participants (match_id, user_id, position, joined_at)
			SELECT
				$1, $2, coalesce(max(position), 0) + 1, now()
			FROM
				match_participants
			WHERE
				match_id = $1
			ON CONFLICT (match_id, user_id)
			DO NOTHING;`
		if _, err := tql.Exec(ctx, tx, participantStmt, invite.MatchID, invite.InviteeID); err != nil {
			return err
		}

		_, err = tql.Exec(ctx, tx, inviteStmt, inviteID, domain.InviteStatusAccepted)
		return err
	}

	if err := core.Tx(ctx, r.db, txFn); err != nil {
		return err
	}

	if capacityExceeded {
		return domain.ErrCapacityExceeded
	}
	return nil
}

func (r *Repository) RejectInvite(ctx context.Context, inviteID uuid.UUID) error {
	const stmt = `
		UPDATE
			invites
		SET
			status = 'rejected'
		WHERE
			id = $1 AND status = 'pending';`
	result, err := tql.Exec(ctx, r.db, stmt, inviteID)
	if err != nil {
		return err
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if updated == 0 {
		return domain.ErrConflict
	}
	return nil
}
