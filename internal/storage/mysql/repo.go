// Package mysql is the production Store on database/sql and go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"hotel_booking/internal/domain"
)

const errDuplicateEntry = 1062

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valStrPtr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valJSON(v []string) any {
	if v == nil {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func isDuplicate(err error) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }}
}

// inTx runs fn in a transaction and commits only if fn succeeds and ctx is still live.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// ---- rooms ----

func scanRoom(sc scanner) (domain.Room, error) {
	var (
		r         domain.Room
		desc      sql.NullString
		amenities []byte
	)
	if err := sc.Scan(
		&r.ID, &r.PropertyID, &r.Number, &r.Type, &r.Price, &r.Capacity,
		&r.Climate, &desc, &amenities, &r.Status, &r.Maintenance,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return domain.Room{}, err
	}
	r.Description = desc.String
	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &r.Amenities); err != nil {
			return domain.Room{}, fmt.Errorf("room %d amenities: %w", r.ID, err)
		}
	}
	return r, nil
}

func getRoom(ctx context.Context, q querier, query string, id int64) (domain.Room, error) {
	r, err := scanRoom(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("get room %d: %w", id, err)
	}
	imgs, err := loadImages(ctx, q, id)
	if err != nil {
		return domain.Room{}, err
	}
	r.Images = imgs[id]
	return r, nil
}

func loadImages(ctx context.Context, q querier, roomIDs ...int64) (map[int64][]domain.RoomImage, error) {
	out := make(map[int64][]domain.RoomImage, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(roomIDs))
	for i, id := range roomIDs {
		args[i] = id
	}
	query := `SELECT id, room_id, url, is_primary FROM room_images WHERE room_id IN (` +
		strings.TrimSuffix(strings.Repeat("?,", len(roomIDs)), ",") + `) ORDER BY id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load images: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var img domain.RoomImage
		if err := rows.Scan(&img.ID, &img.RoomID, &img.URL, &img.Primary); err != nil {
			return nil, err
		}
		out[img.RoomID] = append(out[img.RoomID], img)
	}
	return out, rows.Err()
}

func (s *Store) CreateRoom(ctx context.Context, r *domain.Room) error {
	if r.Status == "" {
		r.Status = domain.RoomAvailable
	}
	now := s.now()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insertRoomSQL,
			r.PropertyID, r.Number, r.Type, r.Price, r.Capacity, r.Climate,
			valStr(r.Description), valJSON(r.Amenities), r.Status, r.Maintenance, now, now,
		)
		if isDuplicate(err) {
			return domain.ErrRoomNumberTaken
		}
		if err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
		if r.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		r.CreatedAt, r.UpdatedAt = now, now
		for i := range r.Images {
			r.Images[i].RoomID = r.ID
			if err := insertImage(ctx, tx, &r.Images[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	return getRoom(ctx, s.db, getRoomSQL, id)
}

func (s *Store) ListRooms(ctx context.Context, q domain.RoomsQuery) ([]domain.Room, error) {
	rows, err := s.db.QueryContext(ctx, listRoomsSQL,
		q.PropertyID, q.PropertyID,
		string(q.Status), string(q.Status),
		string(q.Type), string(q.Type),
		q.Number, q.Number,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var (
		out []domain.Room
		ids []int64
	)
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	imgs, err := loadImages(ctx, s.db, ids...)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Images = imgs[out[i].ID]
	}
	return out, nil
}

func (s *Store) UpdateRoom(ctx context.Context, id int64, p domain.RoomPatch) (domain.Room, error) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Type != nil {
		add("room_type", *p.Type)
	}
	if p.Price != nil {
		add("price_cents", *p.Price)
	}
	if p.Capacity != nil {
		add("capacity", *p.Capacity)
	}
	if p.Description != nil {
		add("description", valStr(*p.Description))
	}
	if p.Climate != nil {
		add("climate", *p.Climate)
	}
	if p.Maintenance != nil {
		add("maintenance", *p.Maintenance)
	}
	if p.Amenities != nil {
		add("amenities", valJSON(p.Amenities))
	}
	add("updated_at", s.now())
	args = append(args, id)

	query := `UPDATE rooms SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND deleted_at IS NULL`
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return domain.Room{}, fmt.Errorf("update room %d: %w", id, err)
	}
	return s.GetRoom(ctx, id)
}

// lockLiveRoom takes the room row lock used by both image edits and booking writes.
func lockLiveRoom(ctx context.Context, tx *sql.Tx, roomID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM rooms WHERE id = ? AND deleted_at IS NULL FOR UPDATE`, roomID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrRoomNotFound
	}
	return err
}

func insertImage(ctx context.Context, tx *sql.Tx, img *domain.RoomImage) error {
	res, err := tx.ExecContext(ctx, insertImageSQL, img.RoomID, img.URL, img.Primary)
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	img.ID, err = res.LastInsertId()
	return err
}

// AddRoomImage makes the first image of a room primary; an explicit primary demotes the rest.
func (s *Store) AddRoomImage(ctx context.Context, img *domain.RoomImage) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockLiveRoom(ctx, tx, img.RoomID); err != nil {
			return err
		}
		var n int
		if err := tx.QueryRowContext(ctx, countImagesSQL, img.RoomID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			img.Primary = true
		}
		if img.Primary {
			if _, err := tx.ExecContext(ctx, clearPrimarySQL, img.RoomID); err != nil {
				return err
			}
		}
		return insertImage(ctx, tx, img)
	})
}

func (s *Store) SetPrimaryImage(ctx context.Context, roomID, imageID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockLiveRoom(ctx, tx, roomID); err != nil {
			return err
		}
		var primary bool
		err := tx.QueryRowContext(ctx, imageIsPrimarySQL, imageID, roomID).Scan(&primary)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrImageNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, setPrimarySQL, imageID, roomID)
		return err
	})
}

func (s *Store) DeleteRoomImage(ctx context.Context, roomID, imageID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockLiveRoom(ctx, tx, roomID); err != nil {
			return err
		}
		var primary bool
		err := tx.QueryRowContext(ctx, imageIsPrimarySQL, imageID, roomID).Scan(&primary)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrImageNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteImageSQL, imageID, roomID); err != nil {
			return err
		}
		if primary {
			_, err = tx.ExecContext(ctx, promoteFirstImageSQL, roomID)
		}
		return err
	})
}

// ---- users ----

func scanUser(sc scanner) (domain.User, error) {
	var (
		u     domain.User
		phone sql.NullString
	)
	err := sc.Scan(&u.ID, &u.Name, &u.Email, &phone, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	u.Phone = phone.String
	return u, err
}

func getUser(ctx context.Context, q querier, query string, arg any) (domain.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func emailKey(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func insertUser(ctx context.Context, q querier, u *domain.User, now time.Time) error {
	u.Email = emailKey(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	var (
		res sql.Result
		err error
	)
	if u.ID != 0 {
		res, err = q.ExecContext(ctx, insertUserWithIDSQL,
			u.ID, u.Name, u.Email, valStr(u.Phone), u.PasswordHash, u.Role, u.Active, u.CreatedAt)
	} else {
		res, err = q.ExecContext(ctx, insertUserSQL,
			u.Name, u.Email, valStr(u.Phone), u.PasswordHash, u.Role, u.Active, u.CreatedAt)
	}
	if isDuplicate(err) {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if u.ID == 0 {
		u.ID, err = res.LastInsertId()
	}
	return err
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return getUser(ctx, s.db, getUserSQL, id)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return getUser(ctx, s.db, getUserByEmailSQL, emailKey(email))
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	return insertUser(ctx, s.db, u, s.now())
}
