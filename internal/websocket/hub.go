package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"playerhub/internal/models"
)

// Store is the slice of the persistence gateway the relay depends on.
type Store interface {
	CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	TouchLastActive(ctx context.Context, userID int64) error
}

// Hub owns the connection registry and relays frames between registered clients.
// Its lifetime is bounded by Run.
type Hub struct {
	registry *Registry
	store    Store
	logger   *zap.Logger

	// ctx outlives the upgrade request of every socket and is cancelled when Run returns.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(store Store, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry: NewRegistry(),
		store:    store,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Run blocks until ctx is done, then closes every registered client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")
	<-ctx.Done()

	h.cancel()
	clients := h.registry.Drain()
	for _, c := range clients {
		c.close()
	}
	h.logger.Info("websocket hub stopped", zap.Int("closed_clients", len(clients)))
}

// Connect binds conn to the authenticated userID and starts its pumps. A client
// already registered for the same user is told it was replaced and closed. Once
// Run has drained the registry, conn is closed and Connect returns nil.
func (h *Hub) Connect(conn *websocket.Conn, userID int64) *Client {
	client := NewClient(h, conn, userID)
	prev, err := h.registry.Register(client)
	if err != nil {
		h.logger.Info("hub stopped, refusing client", zap.Int64("user_id", userID))
		conn.Close()
		return nil
	}
	if prev != nil {
		if data, err := json.Marshal(controlFrame{Type: frameSessionReplaced}); err == nil {
			prev.enqueue(data)
		}
		prev.close()
		h.logger.Info("session replaced", zap.Int64("user_id", userID), zap.String("conn_id", prev.id))
	}
	h.logger.Info("client connected",
		zap.Int64("user_id", userID),
		zap.String("conn_id", client.id),
		zap.Int("online", h.registry.Len()))

	go client.WritePump()
	go client.ReadPump()
	return client
}

func (h *Hub) IsOnline(userID int64) bool {
	_, ok := h.registry.Lookup(userID)
	return ok
}

func (h *Hub) OnlineCount() int {
	return h.registry.Len()
}

// Disconnect closes the live socket of userID, if any.
func (h *Hub) Disconnect(userID int64) {
	if c, ok := h.registry.Lookup(userID); ok {
		h.disconnect(c)
	}
}

func (h *Hub) disconnect(c *Client) {
	if h.registry.Unregister(c) {
		h.logger.Info("client disconnected",
			zap.Int64("user_id", c.userID),
			zap.String("conn_id", c.id),
			zap.Int("online", h.registry.Len()))
	}
	c.close()
}

// sendTo pushes data to userID when it is registered and reports whether it did.
func (h *Hub) sendTo(userID int64, data []byte) bool {
	c, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	return h.push(c, data)
}

// push never blocks. A client whose buffer is full is too slow to keep and is dropped.
func (h *Hub) push(c *Client, data []byte) bool {
	err := c.enqueue(data)
	if err == nil {
		return true
	}
	if errors.Is(err, errSendBufferFull) {
		h.logger.Warn("send buffer full, dropping client",
			zap.Int64("user_id", c.userID),
			zap.String("conn_id", c.id))
	}
	h.disconnect(c)
	return false
}
