//go:generate go run go.uber.org/mock/mockgen -source=service.go -destination=../../../mocks/mock_service.go -package=mocks
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tictactoe/internal/server/core"
	"tictactoe/internal/server/game"
	"tictactoe/internal/server/storage"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultStoreTimeout = 3 * time.Second
	MaxCreateAttempts   = 5
	CleanupJobInterval  = 10 * time.Minute
)

// RoomStore is the durable room record contract. UpdateRoom must apply the
// mutation in one indivisible step only when the guard holds at write time.
type RoomStore interface {
	CreateRoom(ctx context.Context, record storage.RoomRecord) error
	GetRoom(ctx context.Context, roomID string) (*storage.RoomRecord, error)
	UpdateRoom(ctx context.Context, roomID string, guard storage.Guard, mut storage.Mutation, now time.Time) (*storage.RoomRecord, error)
	RecordMove(record storage.MoveRecord) error
	DeleteStaleRooms(ctx context.Context, before time.Time) (int64, error)
	IsHealthy() bool
	Close() error
}

// Publisher fans room state out to the room's subscribers
type Publisher interface {
	PublishState(room core.Room)
	// PublishGameOver announces the terminal status written at version;
	// subscribers that already hold a newer snapshot must not receive it
	PublishGameOver(roomID string, status core.Status, version int64)
}

// Peer is the connection an operation acts for. Bind replaces the
// connection's session and subscribes it to the session's room.
type Peer interface {
	Session() core.Session
	Bind(session core.Session)
}

// Coordinator drives the room lifecycle on top of the store's conditional
// updates. It holds no room state and takes no locks.
type Coordinator struct {
	store        RoomStore
	pub          Publisher
	log          *slog.Logger
	validate     *validator.Validate
	storeTimeout time.Duration
	now          func() time.Time
	newRoomID    func() string
}

// Option configures a Coordinator
type Option func(*Coordinator)

func WithStoreTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.storeTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithRoomIDGenerator(gen func() string) Option {
	return func(c *Coordinator) { c.newRoomID = gen }
}

// New creates a coordinator over store, publishing through pub
func New(store RoomStore, pub Publisher, log *slog.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		store:        store,
		pub:          pub,
		log:          log,
		validate:     NewValidator(),
		storeTimeout: DefaultStoreTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		newRoomID:    game.NewRoomID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetStorageHealth returns the storage component status
func (c *Coordinator) GetStorageHealth() string {
	if c.store.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

// CreateRoom opens a room with the caller as X. A bad name or id never fails
// the request: the name falls back to the default and the id is generated.
func (c *Coordinator) CreateRoom(ctx context.Context, peer Peer, req core.CreateRoomRequest) (*core.RoomCreatedPayload, error) {
	name := game.NameOrDefault(req.PlayerName, game.DefaultPlayer1Name)

	roomID := req.RoomID
	if !game.IsValidRoomID(roomID) {
		roomID = c.newRoomID()
	}

	record, err := c.insertRoom(ctx, roomID, name, true)
	if err != nil {
		return nil, err
	}

	peer.Bind(core.NewSession(record.RoomID, core.SymbolX, name))

	room, ok := c.publishLatest(ctx, record.RoomID)
	if !ok {
		if room, err = record.Room(); err != nil {
			return nil, c.internal("decode created room", err, "room_id", record.RoomID)
		}
	}

	c.log.Info("room created", "room_id", record.RoomID, "player", name)
	return &core.RoomCreatedPayload{RoomID: record.RoomID, Assigned: core.SymbolX, State: room}, nil
}

// OpenRoom is the strict creation path: an explicit invalid id or name is
// rejected and an explicit id that is taken is reported, not regenerated.
func (c *Coordinator) OpenRoom(ctx context.Context, req core.OpenRoomRequest) (core.Room, error) {
	if err := c.validate.Struct(req); err != nil {
		return core.Room{}, ValidationError(err)
	}

	name := game.SanitizeName(req.Player1Name)
	if name == "" {
		name = game.DefaultPlayer1Name
	}

	explicit := req.RoomID != ""
	roomID := req.RoomID
	if !explicit {
		roomID = c.newRoomID()
	}

	record, err := c.insertRoom(ctx, roomID, name, !explicit)
	if err != nil {
		return core.Room{}, err
	}

	room, err := record.Room()
	if err != nil {
		return core.Room{}, c.internal("decode created room", err, "room_id", roomID)
	}
	c.log.Info("room opened", "room_id", roomID, "player", name)
	return room, nil
}

// insertRoom creates the room record, regenerating the id on collision when
// regenerate is set
func (c *Coordinator) insertRoom(ctx context.Context, roomID, name string, regenerate bool) (*storage.RoomRecord, error) {
	for attempt := 1; ; attempt++ {
		record := storage.NewRoomRecord(roomID, name, c.now())

		sctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
		err := c.store.CreateRoom(sctx, record)
		cancel()

		switch {
		case err == nil:
			return &record, nil
		case !errors.Is(err, storage.ErrDuplicate):
			return nil, c.internal("create room", err, "room_id", roomID)
		case !regenerate:
			return nil, core.NewConflictError(core.ErrRoomIDTaken, "room id already exists").With("roomId", roomID)
		case attempt >= MaxCreateAttempts:
			c.log.Warn("room id collisions exhausted create attempts", "attempts", attempt)
			return nil, core.NewConflictError(core.ErrCreateFailed, "could not allocate a room id")
		}
		roomID = c.newRoomID()
	}
}

// JoinRoom claims the O slot of a waiting room
func (c *Coordinator) JoinRoom(ctx context.Context, peer Peer, req core.JoinRoomRequest) (*core.RoomJoinedPayload, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, ValidationError(err)
	}
	name := game.NameOrDefault(req.PlayerName, game.DefaultPlayer2Name)

	_, err := c.update(ctx, req.RoomID,
		storage.Guard{Statuses: []core.Status{core.StatusWaiting}, Player2Vacant: true},
		storage.Mutation{Player2Name: &name, Status: core.StatusActive})
	if errors.Is(err, storage.ErrNoMatch) {
		return nil, c.diagnoseJoin(ctx, req.RoomID)
	}
	if err != nil {
		return nil, c.internal("join room", err, "room_id", req.RoomID)
	}

	peer.Bind(core.NewSession(req.RoomID, core.SymbolO, name))
	c.publishLatest(ctx, req.RoomID)

	c.log.Info("player joined", "room_id", req.RoomID, "player", name)
	return &core.RoomJoinedPayload{RoomID: req.RoomID, Assigned: core.SymbolO}, nil
}

func (c *Coordinator) diagnoseJoin(ctx context.Context, roomID string) error {
	rec, err := c.get(ctx, roomID)
	if errors.Is(err, storage.ErrNotFound) {
		return roomNotFound(roomID)
	}
	if err != nil {
		return c.internal("diagnose join", err, "room_id", roomID)
	}
	if rec.Player2Name != "" || rec.Status != core.StatusWaiting {
		return core.NewConflictError(core.ErrRoomFull, "room already has two players").With("status", rec.Status)
	}
	return core.NewConflictError(core.ErrJoinFailed, "could not join room")
}

// RejoinRoom reattaches a connection to the slot whose name matches
func (c *Coordinator) RejoinRoom(ctx context.Context, peer Peer, req core.RejoinRoomRequest) (*core.RoomJoinedPayload, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, ValidationError(err)
	}
	name := game.SanitizeName(req.PlayerName)

	rec, err := c.get(ctx, req.RoomID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, roomNotFound(req.RoomID)
	}
	if err != nil {
		return nil, c.internal("rejoin room", err, "room_id", req.RoomID)
	}

	var session core.Session
	switch {
	case game.NamesMatch(name, rec.Player1Name):
		session = core.NewSession(rec.RoomID, core.SymbolX, rec.Player1Name)
	case game.NamesMatch(name, rec.Player2Name):
		session = core.NewSession(rec.RoomID, core.SymbolO, rec.Player2Name)
	default:
		return nil, core.NewConflictError(core.ErrNameMismatch, "name does not match a player in this room")
	}

	peer.Bind(session)
	c.publishLatest(ctx, req.RoomID)

	c.log.Info("player rejoined", "room_id", req.RoomID, "symbol", session.Symbol())
	return &core.RoomJoinedPayload{RoomID: req.RoomID, Assigned: session.Symbol()}, nil
}

// MakeMove places the caller's symbol. The guarded update is the only thing
// deciding whether the move happens; the re-read after a mismatch only explains it.
func (c *Coordinator) MakeMove(ctx context.Context, peer Peer, req core.MoveRequest) error {
	if err := c.validate.Struct(req); err != nil {
		return ValidationError(err)
	}
	session := peer.Session()
	if !session.BoundTo(req.RoomID) {
		return core.NewValidationError(core.ErrNotInRoom, "join the room before moving")
	}

	var gameOver core.Status
	var gameOverVersion int64
	defer func() {
		c.publishLatest(ctx, req.RoomID)
		if gameOver != "" {
			c.pub.PublishGameOver(req.RoomID, gameOver, gameOverVersion)
		}
	}()

	index := *req.Index
	symbol := session.Symbol()

	rec, err := c.update(ctx, req.RoomID,
		storage.Guard{Statuses: []core.Status{core.StatusActive}, Turn: symbol, EmptyCell: &index},
		storage.Mutation{Mark: &storage.Mark{Cell: index, Symbol: symbol}, FlipTurn: true})
	if errors.Is(err, storage.ErrNoMatch) {
		return c.diagnoseMove(ctx, req.RoomID, symbol, index)
	}
	if err != nil {
		return c.internal("apply move", err, "room_id", req.RoomID, "index", index)
	}

	if err := c.store.RecordMove(storage.MoveRecord{
		RoomID:     rec.RoomID,
		Version:    rec.Version,
		Cell:       index,
		Symbol:     symbol,
		BoardAfter: rec.Board,
		MoveTime:   rec.UpdatedAt,
	}); err != nil {
		c.log.Warn("move log write failed", "room_id", rec.RoomID, "error", err)
	}

	room, err := rec.Room()
	if err != nil {
		return c.internal("decode board", err, "room_id", req.RoomID)
	}

	outcome := game.Evaluate(room.Board[:])
	if !outcome.Terminal() {
		return nil
	}

	// Only the exact state produced by this move may be finished
	moveVersion := rec.Version
	finished, err := c.update(ctx, req.RoomID,
		storage.Guard{Statuses: []core.Status{core.StatusActive}, Version: &moveVersion},
		storage.Mutation{Status: outcome.Status()})
	switch {
	case err == nil:
		gameOver, gameOverVersion = outcome.Status(), finished.Version
		c.log.Info("game over", "room_id", req.RoomID, "status", gameOver)
	case errors.Is(err, storage.ErrNoMatch):
		c.log.Debug("terminal transition superseded", "room_id", req.RoomID, "version", moveVersion)
	default:
		return c.internal("finish game", err, "room_id", req.RoomID)
	}
	return nil
}

func (c *Coordinator) diagnoseMove(ctx context.Context, roomID string, symbol core.Symbol, index int) error {
	rec, err := c.get(ctx, roomID)
	if errors.Is(err, storage.ErrNotFound) {
		return roomNotFound(roomID)
	}
	if err != nil {
		return c.internal("diagnose move", err, "room_id", roomID)
	}

	switch {
	case rec.Status != core.StatusActive:
		return core.NewConflictError(core.ErrGameNotActive, "game is not active").With("status", rec.Status)
	case rec.Turn != symbol:
		return core.NewConflictError(core.ErrNotYourTurn, "it is not your turn").With("turn", rec.Turn)
	case rec.Board[index] != game.EmptyBoardString[0]:
		return core.NewConflictError(core.ErrCellOccupied, "cell is already occupied").With("index", index)
	default:
		return core.NewConflictError(core.ErrMoveRejected, "move rejected")
	}
}

// Restart clears the board of a room that has hosted two players
func (c *Coordinator) Restart(ctx context.Context, peer Peer, req core.RestartRequest) (*core.RestartedPayload, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, ValidationError(err)
	}
	if !peer.Session().BoundTo(req.RoomID) {
		return nil, core.NewValidationError(core.ErrNotInRoom, "join the room before restarting")
	}

	_, err := c.update(ctx, req.RoomID,
		storage.Guard{BothPlayers: true},
		storage.Mutation{ResetBoard: true, Turn: core.SymbolX, Status: core.StatusActive})
	if errors.Is(err, storage.ErrNoMatch) {
		rec, gerr := c.get(ctx, req.RoomID)
		switch {
		case errors.Is(gerr, storage.ErrNotFound):
			return nil, roomNotFound(req.RoomID)
		case gerr != nil:
			return nil, c.internal("diagnose restart", gerr, "room_id", req.RoomID)
		default:
			return nil, core.NewConflictError(core.ErrRoomNotReady, "room needs two players to restart").With("status", rec.Status)
		}
	}
	if err != nil {
		return nil, c.internal("restart room", err, "room_id", req.RoomID)
	}

	c.publishLatest(ctx, req.RoomID)

	c.log.Info("room restarted", "room_id", req.RoomID)
	return &core.RestartedPayload{RoomID: req.RoomID}, nil
}

// Room returns the current snapshot of a room
func (c *Coordinator) Room(ctx context.Context, roomID string) (core.Room, error) {
	if !game.IsValidRoomID(roomID) {
		return core.Room{}, core.NewValidationError(core.ErrInvalidRoomID, "invalid room id")
	}
	rec, err := c.get(ctx, roomID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Room{}, roomNotFound(roomID)
	}
	if err != nil {
		return core.Room{}, c.internal("get room", err, "room_id", roomID)
	}
	room, err := rec.Room()
	if err != nil {
		return core.Room{}, c.internal("decode room", err, "room_id", roomID)
	}
	return room, nil
}

// publishLatest re-fetches the room and publishes whatever is persisted now,
// which may already include writes made after the caller's own
func (c *Coordinator) publishLatest(ctx context.Context, roomID string) (core.Room, bool) {
	// The broadcast should go out even when the request context is already done
	ctx = context.WithoutCancel(ctx)

	rec, err := c.get(ctx, roomID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.log.Error("broadcast fetch failed", "room_id", roomID, "error", err)
		}
		return core.Room{}, false
	}
	room, err := rec.Room()
	if err != nil {
		c.log.Error("broadcast decode failed", "room_id", roomID, "error", err)
		return core.Room{}, false
	}
	c.pub.PublishState(room)
	return room, true
}

func (c *Coordinator) get(ctx context.Context, roomID string) (*storage.RoomRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()
	return c.store.GetRoom(ctx, roomID)
}

func (c *Coordinator) update(ctx context.Context, roomID string, guard storage.Guard, mut storage.Mutation) (*storage.RoomRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()
	return c.store.UpdateRoom(ctx, roomID, guard, mut, c.now())
}

// internal logs the cause and returns the opaque error sent to clients
func (c *Coordinator) internal(op string, err error, attrs ...any) *core.Error {
	c.log.Error(fmt.Sprintf("%s failed", op), append(attrs, "error", err)...)
	return core.NewInternalError()
}

func roomNotFound(roomID string) *core.Error {
	return core.NewNotFoundError(core.ErrRoomNotFound, "room not found").With("roomId", roomID)
}
