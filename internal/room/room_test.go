package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/starspacegroup/starspace-server/internal/checkpoint"
	"github.com/starspacegroup/starspace-server/internal/directory"
	"github.com/starspacegroup/starspace-server/internal/game"
	"github.com/starspacegroup/starspace-server/internal/net/proto"
	"github.com/starspacegroup/starspace-server/internal/telemetry"
)

// fakeConn records outbound frames. Tests drive the room handlers directly on
// the test goroutine, so no locking is needed.
type fakeConn struct {
	sent     [][]byte
	closed   bool
	failSend bool
}

func (c *fakeConn) Send(data []byte) error {
	if c.failSend {
		return errors.New("send failed")
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// received decodes the type tags of everything the connection was sent.
func (c *fakeConn) received(t *testing.T) []string {
	t.Helper()
	types := make([]string, 0, len(c.sent))
	for _, data := range c.sent {
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("undecodable frame %q: %v", data, err)
		}
		types = append(types, env.Type)
	}
	return types
}

func (c *fakeConn) got(t *testing.T, want string) bool {
	t.Helper()
	for _, typ := range c.received(t) {
		if typ == want {
			return true
		}
	}
	return false
}

// lastError returns the code of the most recent error frame, if any.
func (c *fakeConn) lastError(t *testing.T) string {
	t.Helper()
	code := ""
	for _, data := range c.sent {
		var env struct {
			Type string `json:"type"`
			Code string `json:"code"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("undecodable frame %q: %v", data, err)
		}
		if env.Type == "error" {
			code = env.Code
		}
	}
	return code
}

func newTestRoom(t *testing.T, store checkpoint.Store) *Room {
	t.Helper()
	if store == nil {
		store = checkpoint.NewMemoryStore()
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := game.Config{MaxPlayers: 3}
	return New("TEST42", cfg, Deps{
		Logger:   telemetry.Nop(),
		Store:    store,
		Notifier: directory.Nop{},
		Now:      func() time.Time { return now },
	})
}

// join runs the join handler synchronously, failing the test on error.
func join(t *testing.T, r *Room, playerID, name string, conn Conn) {
	t.Helper()
	res := r.handleJoin(joinRequest{playerID: playerID, name: name, conn: conn})
	if res.err != nil {
		t.Fatalf("join %s: %v", playerID, res.err)
	}
	var env struct {
		Type     string `json:"type"`
		PlayerID string `json:"playerId"`
		RoomCode string `json:"roomCode"`
	}
	if err := json.Unmarshal(res.welcome, &env); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	if env.Type != "welcome" || env.PlayerID != playerID || env.RoomCode != r.code {
		t.Fatalf("unexpected welcome %+v", env)
	}
}

func startGame(t *testing.T, r *Room) {
	t.Helper()
	r.dispatch(r.hostID, proto.StartGame{})
	if r.phase != PhasePlaying {
		t.Fatalf("phase after start = %s, want playing", r.phase)
	}
}

func advance(r *Room, ticks int) {
	dt := r.cfg.TickInterval().Seconds()
	for i := 0; i < ticks; i++ {
		r.tick(r.deps.Now(), dt)
	}
}

func TestJoinAssignsHostAndWelcome(t *testing.T) {
	r := newTestRoom(t, nil)
	c1 := &fakeConn{}
	join(t, r, "p1", "Ana", c1)

	if r.hostID != "p1" {
		t.Fatalf("hostID = %q, want p1", r.hostID)
	}
	if r.phase != PhaseLobby {
		t.Fatalf("phase = %s, want lobby", r.phase)
	}
	if !c1.got(t, "lobby-state") {
		t.Fatalf("first joiner did not receive lobby-state, got %v", c1.received(t))
	}

	c2 := &fakeConn{}
	join(t, r, "p2", "Ben", c2)
	if r.hostID != "p1" {
		t.Fatalf("host changed to %q after second join", r.hostID)
	}
	if !c1.got(t, "player-joined") {
		t.Fatalf("existing session missed player-joined, got %v", c1.received(t))
	}
}

func TestJoinDuplicateSessionEvictsOld(t *testing.T) {
	r := newTestRoom(t, nil)
	old := &fakeConn{}
	join(t, r, "p1", "Ana", old)

	fresh := &fakeConn{}
	join(t, r, "p1", "Ana", fresh)

	if code := old.lastError(t); code != proto.ErrCodeDuplicateSession {
		t.Fatalf("old session error code = %q, want %q", code, proto.ErrCodeDuplicateSession)
	}
	if !old.closed {
		t.Fatal("old connection not closed after eviction")
	}
	if r.sessions["p1"] != Conn(fresh) {
		t.Fatal("session binding does not point at the new connection")
	}
	if r.world.PlayerCount() != 1 {
		t.Fatalf("player count = %d, want 1 (rejoin must not duplicate the entity)", r.world.PlayerCount())
	}
}

func TestJoinRoomFull(t *testing.T) {
	r := newTestRoom(t, nil)
	join(t, r, "p1", "Ana", &fakeConn{})
	join(t, r, "p2", "Ben", &fakeConn{})
	join(t, r, "p3", "Cleo", &fakeConn{})

	res := r.handleJoin(joinRequest{playerID: "p4", name: "Dee", conn: &fakeConn{}})
	if !errors.Is(res.err, ErrRoomFull) {
		t.Fatalf("fourth join err = %v, want ErrRoomFull", res.err)
	}

	// Returning players reclaim their entity even at capacity.
	r.handleDetach("p2", r.sessions["p2"])
	join(t, r, "p2", "Ben", &fakeConn{})
}

func TestJoinAfterEnded(t *testing.T) {
	r := newTestRoom(t, nil)
	join(t, r, "p1", "Ana", &fakeConn{})
	startGame(t, r)
	r.endRoom("test shutdown")

	res := r.handleJoin(joinRequest{playerID: "p2", name: "Ben", conn: &fakeConn{}})
	if !errors.Is(res.err, ErrRoomEnded) {
		t.Fatalf("join after end err = %v, want ErrRoomEnded", res.err)
	}
}

func TestStartGameHostOnly(t *testing.T) {
	r := newTestRoom(t, nil)
	join(t, r, "p1", "Ana", &fakeConn{})
	c2 := &fakeConn{}
	join(t, r, "p2", "Ben", c2)

	r.dispatch("p2", proto.StartGame{})
	if r.phase != PhaseLobby {
		t.Fatalf("non-host started the game, phase = %s", r.phase)
	}
	if code := c2.lastError(t); code != proto.ErrCodeNotHost {
		t.Fatalf("non-host error code = %q, want %q", code, proto.ErrCodeNotHost)
	}

	startGame(t, r)
	if r.startedAt.IsZero() {
		t.Fatal("startedAt not recorded")
	}
}

func TestSetPrivacyHostOnly(t *testing.T) {
	r := newTestRoom(t, nil)
	join(t, r, "p1", "Ana", &fakeConn{})
	c2 := &fakeConn{}
	join(t, r, "p2", "Ben", c2)

	r.dispatch("p2", proto.SetPrivacy{IsPrivate: true})
	if r.private {
		t.Fatal("non-host toggled privacy")
	}
	if code := c2.lastError(t); code != proto.ErrCodeNotHost {
		t.Fatalf("non-host error code = %q, want %q", code, proto.ErrCodeNotHost)
	}

	r.dispatch("p1", proto.SetPrivacy{IsPrivate: true})
	if !r.private {
		t.Fatal("host privacy toggle ignored")
	}
}

func TestStagedInputPersistsFireConsumedOnce(t *testing.T) {
	r := newTestRoom(t, nil)
	join(t, r, "p1", "Ana", &fakeConn{})
	startGame(t, r)

	r.dispatch("p1", proto.Input{Tick: 7, Thrust: true})
	r.dispatch("p1", proto.Fire{Tick: 7})
	if len(r.pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(r.pending))
	}

	advance(r, 1)
	if len(r.pending) != 0 {
		t.Fatalf("pending not consumed by tick, %d left", len(r.pending))
	}
	if r.staged["p1"] == nil {
		t.Fatal("staged input dropped after tick; it must persist until replaced")
	}
	p, _ := r.world.Player("p1")
	if p.ShootCooldownUntil == 0 {
		t.Fatal("fire command never reached the world")
	}

	advance(r, 1)
	if r.staged["p1"] == nil || r.staged["p1"].Seq != 7 {
		t.Fatal("staged input changed without a new client packet")
	}
}

func TestDispatchIgnoresUnboundSession(t *testing.T) {
	r := newTestRoom(t, nil)
	join(t, r, "p1", "Ana", &fakeConn{})

	r.dispatch("ghost", proto.Input{Thrust: true})
	r.dispatch("ghost", proto.Fire{})
	if len(r.staged) != 0 || len(r.pending) != 0 {
		t.Fatalf("unbound session staged work: staged=%d pending=%d", len(r.staged), len(r.pending))
	}
}

func TestDispatchCoversAllClientMessages(t *testing.T) {
	r := newTestRoom(t, nil)
	join(t, r, "p1", "Ana", &fakeConn{})

	// One of each union member; dispatch must handle every type without
	// panicking, including the stray join.
	msgs := []proto.ClientMessage{
		proto.Join{ID: "p1"},
		proto.Input{},
		proto.Fire{},
		proto.Interact{},
		proto.Chat{Text: "hi"},
		proto.RespawnRequest{},
		proto.SetPrivacy{},
		proto.StartGame{},
		proto.Leave{},
	}
	for _, msg := range msgs {
		r.dispatch("p1", msg)
	}
}

func TestChatBroadcastCarriesName(t *testing.T) {
	r := newTestRoom(t, nil)
	c1 := &fakeConn{}
	join(t, r, "p1", "Ana", c1)
	c2 := &fakeConn{}
	join(t, r, "p2", "Ben", c2)

	r.dispatch("p1", proto.Chat{Text: "hello"})
	for _, c := range []*fakeConn{c1, c2} {
		if !c.got(t, "chat-broadcast") {
			t.Fatalf("chat not broadcast, got %v", c.received(t))
		}
	}

	r.dispatch("p1", proto.Chat{Text: ""})
	count := 0
	for _, typ := range c2.received(t) {
		if typ == "chat-broadcast" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("empty chat line was relayed, saw %d broadcasts", count)
	}
}

func TestDetachRetainsPlayerEntity(t *testing.T) {
	r := newTestRoom(t, nil)
	c1 := &fakeConn{}
	join(t, r, "p1", "Ana", c1)
	c2 := &fakeConn{}
	join(t, r, "p2", "Ben", c2)
	startGame(t, r)

	r.handleDetach("p1", c1)
	if _, ok := r.sessions["p1"]; ok {
		t.Fatal("session binding survived detach")
	}
	if _, ok := r.world.Player("p1"); !ok {
		t.Fatal("player entity deleted on detach; it must be retained for rejoin")
	}
	if !c2.got(t, "player-left") {
		t.Fatalf("remaining session missed player-left, got %v", c2.received(t))
	}
	if r.phase != PhasePlaying {
		t.Fatalf("room ended while a living player remained, phase = %s", r.phase)
	}

	// A stale detach (connection already replaced) is a no-op.
	join(t, r, "p1", "Ana", &fakeConn{})
	r.handleDetach("p1", c1)
	if _, ok := r.sessions["p1"]; !ok {
		t.Fatal("stale detach removed the new session binding")
	}
}

func TestLastDetachWithNobodyAliveEndsRoom(t *testing.T) {
	r := newTestRoom(t, nil)
	c1 := &fakeConn{}
	join(t, r, "p1", "Ana", c1)
	startGame(t, r)

	p, _ := r.world.Player("p1")
	p.Health = 0
	r.handleDetach("p1", c1)

	if r.phase != PhaseEnded {
		t.Fatalf("phase = %s, want ended after last session left with nobody alive", r.phase)
	}
}

func TestAllDeadGraceEndsRoom(t *testing.T) {
	r := newTestRoom(t, nil)
	c1 := &fakeConn{}
	join(t, r, "p1", "Ana", c1)
	c2 := &fakeConn{}
	join(t, r, "p2", "Ben", c2)
	startGame(t, r)
	advance(r, 2)

	for _, id := range []string{"p1", "p2"} {
		p, _ := r.world.Player(id)
		p.Health = 0
	}

	grace := int(r.cfg.TicksFor(2.0))
	advance(r, grace/2)
	if r.phase != PhasePlaying {
		t.Fatalf("room ended before the grace window elapsed, phase = %s", r.phase)
	}

	advance(r, grace+2)
	if r.phase != PhaseEnded {
		t.Fatalf("phase = %s, want ended after grace window", r.phase)
	}
	if r.endReason != "All players eliminated" {
		t.Fatalf("endReason = %q", r.endReason)
	}
	for _, c := range []*fakeConn{c1, c2} {
		if !c.got(t, "room-ended") {
			t.Fatalf("session missed room-ended, got %v", c.received(t))
		}
	}
}

func TestAllDeadGraceResetsOnRespawn(t *testing.T) {
	r := newTestRoom(t, nil)
	join(t, r, "p1", "Ana", &fakeConn{})
	join(t, r, "p2", "Ben", &fakeConn{})
	startGame(t, r)
	advance(r, 1)

	p1, _ := r.world.Player("p1")
	p2, _ := r.world.Player("p2")
	p1.Health = 0
	p2.Health = 0
	advance(r, 5)
	if r.allDeadSince == 0 {
		t.Fatal("all-dead window never opened")
	}

	p1.Health = 50
	advance(r, 1)
	if r.allDeadSince != 0 {
		t.Fatal("all-dead window not reset after a player came back")
	}
	advance(r, int(r.cfg.TicksFor(2.0))+5)
	if r.phase != PhasePlaying {
		t.Fatalf("room ended despite a living player, phase = %s", r.phase)
	}
}

func TestBroadcastDropsFailedSession(t *testing.T) {
	r := newTestRoom(t, nil)
	c1 := &fakeConn{}
	join(t, r, "p1", "Ana", c1)
	bad := &fakeConn{failSend: true}
	join(t, r, "p2", "Ben", bad)
	startGame(t, r)

	advance(r, 1)
	if _, ok := r.sessions["p2"]; ok {
		t.Fatal("unresponsive session not dropped during broadcast")
	}
	if !bad.closed {
		t.Fatal("dropped connection not closed")
	}
	if _, ok := r.world.Player("p2"); !ok {
		t.Fatal("player entity deleted when its transport failed")
	}
	if !c1.got(t, "state") {
		t.Fatalf("healthy session missed state broadcast, got %v", c1.received(t))
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	r := newTestRoom(t, store)
	join(t, r, "p1", "Ana", &fakeConn{})
	join(t, r, "p2", "Ben", &fakeConn{})
	startGame(t, r)
	r.dispatch("p1", proto.SetPrivacy{IsPrivate: true})
	advance(r, 10)
	r.writeCheckpoint()

	restored := newTestRoom(t, store)
	if restored.phase != PhasePlaying {
		t.Fatalf("restored phase = %s, want playing", restored.phase)
	}
	if restored.hostID != "p1" {
		t.Fatalf("restored hostID = %q, want p1", restored.hostID)
	}
	if !restored.private {
		t.Fatal("privacy flag lost across checkpoint")
	}
	if restored.world.Tick() != r.world.Tick() {
		t.Fatalf("restored tick = %d, want %d", restored.world.Tick(), r.world.Tick())
	}
	if _, ok := restored.world.Player("p2"); !ok {
		t.Fatal("player entity lost across checkpoint")
	}
}

func TestEndedCheckpointStaysEnded(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	r := newTestRoom(t, store)
	join(t, r, "p1", "Ana", &fakeConn{})
	startGame(t, r)
	r.endRoom("All players eliminated")
	r.writeCheckpoint()

	restored := newTestRoom(t, store)
	if restored.phase != PhaseEnded {
		t.Fatalf("restored phase = %s; an ended room must not resurrect", restored.phase)
	}
	res := restored.handleJoin(joinRequest{playerID: "p2", name: "Ben", conn: &fakeConn{}})
	if !errors.Is(res.err, ErrRoomEnded) {
		t.Fatalf("join into restored ended room err = %v, want ErrRoomEnded", res.err)
	}
}

func TestTerminateEndedRoomDeletesCheckpoint(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	r := newTestRoom(t, store)
	c1 := &fakeConn{}
	join(t, r, "p1", "Ana", c1)
	startGame(t, r)
	r.endRoom("test shutdown")
	r.writeCheckpoint()

	r.handleTerminate()
	if !c1.got(t, "room-terminated") {
		t.Fatalf("session missed room-terminated, got %v", c1.received(t))
	}
	if !c1.closed {
		t.Fatal("connection left open after terminate")
	}
	if _, ok, _ := store.Get(context.Background(), r.checkpointKey()); ok {
		t.Fatal("ended room's checkpoint not deleted on terminate")
	}
}

func TestTerminateLiveRoomKeepsCheckpoint(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	r := newTestRoom(t, store)
	join(t, r, "p1", "Ana", &fakeConn{})
	startGame(t, r)
	advance(r, 3)

	r.handleTerminate()
	if _, ok, _ := store.Get(context.Background(), r.checkpointKey()); !ok {
		t.Fatal("live room terminated without writing a checkpoint")
	}
}

func TestLobbyDoesNotTick(t *testing.T) {
	r := newTestRoom(t, nil)
	join(t, r, "p1", "Ana", &fakeConn{})
	advance(r, 5)
	if got := r.world.Tick(); got != 0 {
		t.Fatalf("world ticked %d times while in lobby", got)
	}
}

func TestLeaveRemovesEntityAndReassignsHost(t *testing.T) {
	r := newTestRoom(t, nil)
	c1 := &fakeConn{}
	join(t, r, "p1", "Ana", c1)
	c2 := &fakeConn{}
	join(t, r, "p2", "Ben", c2)

	r.dispatch("p1", proto.Leave{})
	if _, ok := r.world.Player("p1"); ok {
		t.Fatal("explicit leave must delete the player entity")
	}
	if _, ok := r.sessions["p1"]; ok {
		t.Fatal("session binding survived leave")
	}
	if !c1.closed {
		t.Fatal("leaving connection not closed")
	}
	if r.hostID != "p2" {
		t.Fatalf("hostID = %q after host left, want p2", r.hostID)
	}
	if !c2.got(t, "player-left") {
		t.Fatalf("remaining session missed player-left, got %v", c2.received(t))
	}

	// The freed slot is a real slot: a third player fits again.
	join(t, r, "p3", "Cleo", &fakeConn{})
	join(t, r, "p4", "Dee", &fakeConn{})
}

func TestLastLeaveWhilePlayingEndsRoom(t *testing.T) {
	r := newTestRoom(t, nil)
	join(t, r, "p1", "Ana", &fakeConn{})
	startGame(t, r)

	r.dispatch("p1", proto.Leave{})
	if r.phase != PhaseEnded {
		t.Fatalf("phase = %s, want ended after the only player left mid-game", r.phase)
	}
}

func TestAbandonedLobbyReclaimed(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r := New("LOBBY1", game.Config{}, Deps{
		Logger: telemetry.Nop(),
		Now:    func() time.Time { return now },
	})
	c := &fakeConn{}
	join(t, r, "p1", "Ana", c)

	r.reapAbandonedLobby(now)
	if !r.emptySince.IsZero() {
		t.Fatal("abandonment window opened while a session was attached")
	}

	r.handleDetach("p1", c)
	r.reapAbandonedLobby(now)
	if r.phase != PhaseLobby {
		t.Fatalf("lobby ended with no grace, phase = %s", r.phase)
	}

	now = now.Add(lobbyAbandonAfter - time.Second)
	r.reapAbandonedLobby(now)
	if r.phase != PhaseLobby {
		t.Fatalf("lobby ended before the abandonment window, phase = %s", r.phase)
	}

	now = now.Add(2 * time.Second)
	r.reapAbandonedLobby(now)
	if r.phase != PhaseEnded {
		t.Fatalf("phase = %s, want ended after abandonment window", r.phase)
	}
	if r.endReason != "Lobby abandoned" {
		t.Fatalf("endReason = %q", r.endReason)
	}
	r.markIdle()
	if !r.Idle() {
		t.Fatal("abandoned lobby not marked idle for pruning")
	}

	// The manager reclaims it like any other idle room.
	m := NewManager(game.Config{}, Deps{Logger: telemetry.Nop()})
	t.Cleanup(m.Shutdown)
	m.rooms[r.code] = r
	go r.Run()
	m.Prune()
	if _, ok := m.Lookup(r.code); ok {
		t.Fatal("abandoned lobby room still registered after prune")
	}
}

func TestLobbyAbandonmentResetByRejoin(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r := New("LOBBY2", game.Config{}, Deps{
		Logger: telemetry.Nop(),
		Now:    func() time.Time { return now },
	})
	c := &fakeConn{}
	join(t, r, "p1", "Ana", c)
	r.handleDetach("p1", c)
	r.reapAbandonedLobby(now)

	now = now.Add(lobbyAbandonAfter / 2)
	join(t, r, "p1", "Ana", &fakeConn{})
	r.reapAbandonedLobby(now)
	if !r.emptySince.IsZero() {
		t.Fatal("abandonment window not reset by rejoin")
	}

	now = now.Add(2 * lobbyAbandonAfter)
	r.reapAbandonedLobby(now)
	if r.phase != PhaseLobby {
		t.Fatalf("occupied lobby reaped, phase = %s", r.phase)
	}
}

func TestNeverJoinedRoomReclaimed(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r := New("LOBBY3", game.Config{}, Deps{
		Logger: telemetry.Nop(),
		Now:    func() time.Time { return now },
	})

	r.reapAbandonedLobby(now)
	now = now.Add(lobbyAbandonAfter + time.Second)
	r.reapAbandonedLobby(now)
	r.markIdle()
	if r.phase != PhaseEnded || !r.Idle() {
		t.Fatalf("room nobody ever joined not reclaimed: phase=%s idle=%v", r.phase, r.Idle())
	}
}
