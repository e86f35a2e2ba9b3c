package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"chathub/internal/websocket"
	"chathub/pkg/interfaces"
	"chathub/pkg/types"
)

const (
	defaultSweepInterval = 30 * time.Second
	limiterMaxIdle       = time.Hour
	eventBuffer          = 1024
)

// Error frame texts. Sent to the offending sender only.
const (
	msgAuthRequired   = "not signed in or session expired"
	msgGlobalMuted    = "global mute is active"
	msgUserMuted      = "you are muted"
	msgDeleteFailed   = "delete failed"
	msgSendFailed     = "message not sent"
	anonymousNickname = "anonymous"
)

type eventKind int

const (
	evConnect eventKind = iota
	evFrame
	evDisconnect
)

// event is one unit of work for the hub goroutine.
type event struct {
	kind  eventKind
	conn  interfaces.Connection
	token string
	data  []byte
}

// Hub is the central coordinator: it authenticates connections, applies
// moderation rules, persists accepted messages and fans events out through
// the registry. Every mutation of shared moderation and presence state runs
// on the single hub goroutine, so handlers need no locking of their own. It
// also owns the periodic sweep that expires scheduled global-mute windows.
type Hub struct {
	registry   *websocket.Registry
	directory  interfaces.UserDirectory
	messages   interfaces.MessageStore
	moderation interfaces.ModerationStore
	limiter    *RateLimiter

	events   chan event
	shutdown chan struct{}
	running  bool
	mu       sync.RWMutex

	sweepInterval      time.Duration
	historyLimit       int
	lastGlobalSnapshot string
	now                func() time.Time
}

// NewHub creates a hub over the given registry, directory and stores.
func NewHub(registry *websocket.Registry, directory interfaces.UserDirectory, messages interfaces.MessageStore, moderation interfaces.ModerationStore) *Hub {
	return &Hub{
		registry:      registry,
		directory:     directory,
		messages:      messages,
		moderation:    moderation,
		limiter:       NewRateLimiter(),
		events:        make(chan event, eventBuffer),
		shutdown:      make(chan struct{}),
		sweepInterval: defaultSweepInterval,
		historyLimit:  types.MaxHistory,
		now:           time.Now,
	}
}

// Configure overrides the history replay size and sweep cadence. Must be
// called before Start.
func (h *Hub) Configure(historyLimit int, sweepInterval time.Duration) {
	if historyLimit > 0 {
		h.historyLimit = historyLimit
	}
	if sweepInterval > 0 {
		h.sweepInterval = sweepInterval
	}
}

// Start launches the hub goroutine.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	log.Println("Starting chat hub...")
	go h.run(ctx)

	return nil
}

// Stop shuts the hub goroutine down. Queued events are dropped.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	log.Println("Stopping chat hub...")

	select {
	case <-h.shutdown:
	default:
		close(h.shutdown)
	}

	return nil
}

// Connect implements websocket.FrameSink. The token is the connect-time
// query parameter and may be empty, in which case the connection waits for
// an in-band auth frame.
func (h *Hub) Connect(conn interfaces.Connection, token string) {
	h.enqueue(event{kind: evConnect, conn: conn, token: token}, true)
}

// HandleFrame implements websocket.FrameSink.
func (h *Hub) HandleFrame(conn interfaces.Connection, data []byte) {
	h.enqueue(event{kind: evFrame, conn: conn, data: data}, false)
}

// Disconnect implements websocket.FrameSink. Idempotent.
func (h *Hub) Disconnect(conn interfaces.Connection) {
	h.enqueue(event{kind: evDisconnect, conn: conn}, true)
}

// enqueue hands an event to the hub goroutine. Lifecycle events block until
// accepted so registration and teardown are never lost; frames are dropped
// under backpressure.
func (h *Hub) enqueue(ev event, lifecycle bool) {
	if lifecycle {
		select {
		case h.events <- ev:
		case <-h.shutdown:
		}
		return
	}

	select {
	case h.events <- ev:
	case <-h.shutdown:
	default:
		log.Printf("Dropping frame from connection %s: hub event queue full", ev.conn.ID())
	}
}

// run is the hub goroutine: one event at a time, plus the periodic sweep.
func (h *Hub) run(ctx context.Context) {
	defer log.Println("Hub processing stopped")

	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-h.events:
			h.handleEvent(ctx, ev)

		case <-ticker.C:
			h.sweep(ctx)

		case <-h.shutdown:
			log.Println("Hub shutdown requested")
			return

		case <-ctx.Done():
			log.Println("Hub context cancelled")
			return
		}
	}
}

func (h *Hub) handleEvent(ctx context.Context, ev event) {
	switch ev.kind {
	case evConnect:
		if ev.token != "" {
			h.authenticate(ctx, ev.conn, ev.token)
		}
	case evFrame:
		h.handleFrame(ctx, ev.conn, ev.data)
	case evDisconnect:
		h.handleDisconnect(ev.conn)
	}
}

// sweep expires the scheduled global-mute window and prunes idle limiter
// entries. Runs every sweepInterval on the hub goroutine.
func (h *Hub) sweep(ctx context.Context) {
	if _, err := h.refreshGlobalMute(ctx); err != nil {
		log.Printf("Global mute sweep failed: %v", err)
	}
	h.limiter.Cleanup(h.now(), limiterMaxIdle)
}

// authenticate resolves the token and, on success, registers presence and
// pushes the entry state. A second attempt on an already authenticated
// connection is a no-op. On failure the connection gets an error frame and
// is closed; the attempt is never retried.
func (h *Hub) authenticate(ctx context.Context, conn interfaces.Connection, token string) {
	if conn.IsAuthenticated() {
		return
	}

	identity, err := h.directory.ResolveToken(ctx, token)
	if err != nil {
		if !errors.Is(err, interfaces.ErrInvalidToken) && !errors.Is(err, interfaces.ErrUserDisabled) {
			log.Printf("Token resolution failed for connection %s: %v", conn.ID(), err)
		}
		_ = conn.WriteJSON(newErrorFrame(msgAuthRequired))
		_ = conn.Close()
		return
	}

	conn.SetIdentity(identity)

	if err := h.registry.Register(conn); err != nil {
		log.Printf("Failed to register connection %s: %v", conn.ID(), err)
		_ = conn.Close()
		return
	}

	h.pushEntryState(ctx, conn)
	h.broadcastOnline()

	log.Printf("Connection authenticated: conn=%s user=%s role=%s", conn.ID(), identity.UserID, identity.Role)
}

// pushEntryState sends the snapshot frames a client needs before it sees any
// live message: profile, global_mute, user_mute, announcement, rules and
// history, in that order.
func (h *Hub) pushEntryState(ctx context.Context, conn interfaces.Connection) {
	identity := conn.Identity()

	h.send(conn, newDataFrame(FrameProfile, profileData{
		Role:     identity.Role,
		UserID:   identity.UserID,
		Nickname: identity.DisplayName(),
	}))

	if state, err := h.refreshGlobalMute(ctx); err != nil {
		log.Printf("Failed to load global mute state: %v", err)
	} else {
		h.send(conn, globalMuteFrame{
			Type:    FrameGlobalMute,
			Enabled: state.EffectiveAt(h.now()),
			StartAt: state.StartAt,
			EndAt:   state.EndAt,
		})
	}

	mute, err := h.moderation.MuteInfo(ctx, identity.UserID)
	if err != nil {
		log.Printf("Failed to load mute record for user %s: %v", identity.UserID, err)
	}
	h.send(conn, userMuteFrame{Type: FrameUserMute, Data: mute, Muted: mute != nil})

	ann, err := h.moderation.Announcement(ctx)
	if err != nil {
		log.Printf("Failed to load announcement: %v", err)
	}
	h.send(conn, newDataFrame(FrameAnnouncement, ann))

	rules, err := h.moderation.Rules(ctx)
	if err != nil {
		log.Printf("Failed to load chat rules: %v", err)
		rules = types.DefaultRules()
	}
	h.send(conn, newDataFrame(FrameRules, rules))

	history, err := h.messages.ListRecent(ctx, h.historyLimit)
	if err != nil {
		log.Printf("Failed to load message history: %v", err)
	}
	if history == nil {
		history = []*types.ChatMessage{}
	}
	h.send(conn, newDataFrame(FrameHistory, history))
}

// handleFrame parses and dispatches one inbound frame. Malformed and unknown
// frames are silently ignored; admin frames from non-admins are silently
// ignored as well.
func (h *Hub) handleFrame(ctx context.Context, conn interfaces.Connection, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	if frame.Type == FrameAuth {
		h.authenticate(ctx, conn, frame.Token)
		return
	}

	if !conn.IsAuthenticated() {
		// Only send attempts get feedback; everything else pre-auth is
		// dropped.
		if frame.Type == FrameMessage {
			h.send(conn, newErrorFrame(msgAuthRequired))
		}
		return
	}

	switch frame.Type {
	case FrameMessage:
		h.handleMessage(ctx, conn, &frame)

	case FrameDelete, FrameSoftDelete:
		if h.isAdmin(conn) {
			h.handleDelete(ctx, conn, frame.ID)
		}

	case FrameMute:
		if h.isAdmin(conn) {
			h.handleMute(ctx, frame.UserID, frame.Minutes)
		}

	case FrameUnmute:
		if h.isAdmin(conn) {
			h.handleMute(ctx, frame.UserID, 0)
		}

	case FrameListMutes:
		if h.isAdmin(conn) {
			h.handleListMutes(ctx, conn)
		}

	case FrameListOnline:
		h.send(conn, newDataFrame(FrameOnlineUsers, h.registry.Snapshot()))

	case FrameSetGlobalMute:
		if h.isAdmin(conn) {
			h.handleSetGlobalMute(ctx, frame.Enabled)
		}

	case FrameSetGlobalMuteRange:
		if h.isAdmin(conn) {
			h.handleSetGlobalMuteRange(ctx, frame.StartAt, frame.EndAt)
		}

	case FrameSetAnnouncement:
		if h.isAdmin(conn) {
			h.handleSetAnnouncement(ctx, frame.Text)
		}

	case FrameSetRules:
		if h.isAdmin(conn) {
			h.handleSetRules(ctx, frame.Rules)
		}
	}
}

// handleMessage runs a send attempt through the full moderation pipeline:
// rate limit, global mute, personal mute, then content rules. Admin senders
// bypass every check. The limiter is only touched after the message has been
// accepted and persisted, so a rejected send mutates nothing.
func (h *Hub) handleMessage(ctx context.Context, conn interfaces.Connection, frame *Frame) {
	identity := conn.Identity()
	admin := identity.IsAdmin()

	rules, err := h.moderation.Rules(ctx)
	if err != nil {
		log.Printf("Failed to load chat rules: %v", err)
		h.send(conn, newErrorFrame(msgSendFailed))
		return
	}

	if !admin && rules.RateLimitSec > 0 && !h.limiter.Allow(identity.UserID, rules.RateLimitSec, h.now()) {
		h.send(conn, newErrorFrame(fmt.Sprintf("sending too fast, try again in %d seconds", rules.RateLimitSec)))
		return
	}

	state, err := h.refreshGlobalMute(ctx)
	if err != nil {
		log.Printf("Failed to load global mute state: %v", err)
		h.send(conn, newErrorFrame(msgSendFailed))
		return
	}
	if !admin && state.EffectiveAt(h.now()) {
		h.send(conn, newErrorFrame(msgGlobalMuted))
		return
	}

	mute, err := h.moderation.MuteInfo(ctx, identity.UserID)
	if err != nil {
		log.Printf("Failed to load mute record for user %s: %v", identity.UserID, err)
		h.send(conn, newErrorFrame(msgSendFailed))
		return
	}
	if mute != nil {
		h.send(conn, newErrorFrame(msgUserMuted))
		h.send(conn, userMuteFrame{Type: FrameUserMute, Data: mute, Muted: true})
		return
	}

	text := types.SafeText(frame.Message)
	if text == "" {
		return
	}

	if !admin {
		text, err = ApplyContentRules(text, rules)
		if err != nil {
			h.send(conn, newErrorFrame(ruleViolationMessage(err, rules)))
			return
		}
	}

	nickname := strings.TrimSpace(frame.Nickname)
	if nickname == "" {
		nickname = identity.DisplayName()
	}
	if nickname == "" {
		nickname = anonymousNickname
	}

	msg := &types.ChatMessage{
		Text:      text,
		Nickname:  nickname,
		UserID:    identity.UserID,
		Username:  identity.Username,
		Avatar:    identity.Avatar,
		CreatedAt: h.now().UnixMilli(),
	}

	if _, err := h.messages.Append(ctx, msg); err != nil {
		log.Printf("Failed to persist message from user %s: %v", identity.UserID, err)
		h.send(conn, newErrorFrame(msgSendFailed))
		return
	}

	h.limiter.Touch(identity.UserID, h.now())
	h.registry.Broadcast(newDataFrame(FrameMessage, msg))
}

// handleDelete soft-deletes a message and announces the change.
func (h *Hub) handleDelete(ctx context.Context, conn interfaces.Connection, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}

	if err := h.messages.SoftDelete(ctx, id, conn.Identity().UserID); err != nil {
		if !errors.Is(err, interfaces.ErrMessageNotFound) {
			log.Printf("Failed to soft-delete message %s: %v", id, err)
		}
		h.send(conn, newErrorFrame(msgDeleteFailed))
		return
	}

	h.registry.Broadcast(newDataFrame(FrameUpdate, updateEvent{ID: id, Deleted: true}))
}

// handleMute upserts or clears a mute (minutes <= 0 clears), broadcasts the
// mute event to everyone and sends the affected user a targeted user_mute
// frame on every session they hold.
func (h *Hub) handleMute(ctx context.Context, targetID string, minutes int) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return
	}

	var nickname, username string
	if user, err := h.directory.User(ctx, targetID); err == nil {
		nickname = user.Nickname
		username = user.Username
	}

	rec, err := h.moderation.Mute(ctx, targetID, minutes, nickname, username)
	if err != nil {
		log.Printf("Failed to update mute for user %s: %v", targetID, err)
		return
	}

	ev := muteEvent{UserID: targetID}
	if rec != nil {
		ev.Minutes = minutes
		ev.ExpiresAt = rec.ExpiresAt
	}
	h.registry.Broadcast(newDataFrame(FrameMute, ev))

	target := rec
	if target == nil {
		target = &types.MuteRecord{UserID: targetID}
	}
	h.registry.SendTo(targetID, userMuteFrame{Type: FrameUserMute, Data: target, Muted: rec != nil})
}

func (h *Hub) handleListMutes(ctx context.Context, conn interfaces.Connection) {
	mutes, err := h.moderation.ListMutes(ctx)
	if err != nil {
		log.Printf("Failed to list mutes: %v", err)
		return
	}
	if mutes == nil {
		mutes = []*types.MuteRecord{}
	}
	h.send(conn, newDataFrame(FrameMutes, mutes))
}

func (h *Hub) handleSetGlobalMute(ctx context.Context, enabled bool) {
	if err := h.moderation.SetGlobalMute(ctx, enabled); err != nil {
		log.Printf("Failed to set global mute: %v", err)
		return
	}
	if _, err := h.refreshGlobalMute(ctx); err != nil {
		log.Printf("Failed to refresh global mute state: %v", err)
	}
}

func (h *Hub) handleSetGlobalMuteRange(ctx context.Context, startAt, endAt *int64) {
	if err := h.moderation.SetGlobalMuteRange(ctx, startAt, endAt); err != nil {
		log.Printf("Failed to set global mute range: %v", err)
		return
	}
	if _, err := h.refreshGlobalMute(ctx); err != nil {
		log.Printf("Failed to refresh global mute state: %v", err)
	}
}

func (h *Hub) handleSetAnnouncement(ctx context.Context, text string) {
	ann, err := h.moderation.SetAnnouncement(ctx, text)
	if err != nil {
		log.Printf("Failed to set announcement: %v", err)
		return
	}
	h.registry.Broadcast(newDataFrame(FrameAnnouncement, ann))
}

func (h *Hub) handleSetRules(ctx context.Context, rules *types.ChatRules) {
	updated, err := h.moderation.SetRules(ctx, rules)
	if err != nil {
		log.Printf("Failed to set chat rules: %v", err)
		return
	}
	h.registry.Broadcast(newDataFrame(FrameRules, updated))
}

// handleDisconnect tears presence down. Closing twice is a no-op: only the
// disconnect that actually removes the connection from the registry updates
// the online list.
func (h *Hub) handleDisconnect(conn interfaces.Connection) {
	removed := h.registry.Unregister(conn)
	_ = conn.Close()
	if removed {
		h.broadcastOnline()
	}
}

// refreshGlobalMute re-derives the effective global-mute state. A scheduled
// window that has passed is cleared in the store (side-effecting read), and
// a global_mute frame is broadcast only when the observable state changed
// since the last broadcast. Runs on the hub goroutine, so the dedup snapshot
// is updated atomically with the broadcast it guards.
func (h *Hub) refreshGlobalMute(ctx context.Context) (*types.GlobalMuteState, error) {
	state, err := h.moderation.GlobalMute(ctx)
	if err != nil {
		return nil, err
	}

	if state.WindowExpiredAt(h.now()) {
		if err := h.moderation.SetGlobalMuteRange(ctx, nil, nil); err != nil {
			return nil, err
		}
		state, err = h.moderation.GlobalMute(ctx)
		if err != nil {
			return nil, err
		}
	}

	snapshot := state.SnapshotAt(h.now())
	if h.lastGlobalSnapshot == "" {
		// First evaluation establishes the baseline without a broadcast;
		// entry pushes deliver the state to each client individually.
		h.lastGlobalSnapshot = snapshot
	} else if snapshot != h.lastGlobalSnapshot {
		h.lastGlobalSnapshot = snapshot
		h.registry.Broadcast(globalMuteFrame{
			Type:    FrameGlobalMute,
			Enabled: state.EffectiveAt(h.now()),
			StartAt: state.StartAt,
			EndAt:   state.EndAt,
		})
	}

	return state, nil
}

func (h *Hub) broadcastOnline() {
	h.registry.Broadcast(newDataFrame(FrameOnlineUsers, h.registry.Snapshot()))
}

func (h *Hub) isAdmin(conn interfaces.Connection) bool {
	identity := conn.Identity()
	return identity != nil && identity.IsAdmin()
}

func (h *Hub) send(conn interfaces.Connection, v interface{}) {
	if err := conn.WriteJSON(v); err != nil {
		log.Printf("Failed to send frame to connection %s: %v", conn.ID(), err)
	}
}

// ruleViolationMessage maps a content-rule error to its client-facing text.
func ruleViolationMessage(err error, rules *types.ChatRules) string {
	switch {
	case errors.Is(err, types.ErrMessageTooLong):
		return fmt.Sprintf("message is limited to %d characters", rules.MaxLength)
	case errors.Is(err, types.ErrBlockedWord):
		return "message contains a blocked word"
	case errors.Is(err, types.ErrLinkNotAllowed):
		return "links are not allowed right now"
	case errors.Is(err, types.ErrImageNotAllowed):
		return "image links are not allowed right now"
	default:
		return msgSendFailed
	}
}

// Stats returns hub counters for the health endpoint.
func (h *Hub) Stats() map[string]int {
	stats := h.registry.Stats()
	stats["queued_events"] = len(h.events)
	return stats
}
