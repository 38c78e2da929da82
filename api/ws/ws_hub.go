package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/zlnvch/flashlist/cache"
	"github.com/zlnvch/flashlist/models"
	"github.com/zlnvch/flashlist/service"
)

type outlineChangedData struct {
	SessionId string `json:"sessionId"`
}

type outlineChangedMessage struct {
	Type string             `json:"type"`
	Data outlineChangedData `json:"data"`
}

type userMessage struct {
	userId string
	bytes  []byte
}

type clientMessage struct {
	client *Client
	bytes  []byte
}

// Hub keeps the open connections of every user and forwards that user's
// outline changes to them. All maps are owned by Run.
type Hub struct {
	outlineCache          cache.OutlineCache
	OpenCh                chan *Client
	CloseCh               chan *Client
	UserDeletedCh         chan string
	broadcastCh           chan userMessage
	replyCh               chan clientMessage
	userToClients         map[string]map[*Client]struct{}
	userToSubscribeCancel map[string]context.CancelFunc
}

func NewHub(outlineCache cache.OutlineCache) *Hub {
	return &Hub{
		outlineCache:          outlineCache,
		OpenCh:                make(chan *Client, 256),
		CloseCh:               make(chan *Client, 256),
		UserDeletedCh:         make(chan string, 64),
		broadcastCh:           make(chan userMessage, 1024),
		replyCh:               make(chan clientMessage, 256),
		userToClients:         make(map[string]map[*Client]struct{}),
		userToSubscribeCancel: make(map[string]context.CancelFunc),
	}
}

const maxConnectionsPerUser = 5

func (h *Hub) Run(shutdownCtx context.Context) {
	for {
		select {
		case client := <-h.OpenCh:
			h.open(client)

		case client := <-h.CloseCh:
			h.remove(client)

		case msg := <-h.broadcastCh:
			for client := range h.userToClients[msg.userId] {
				select {
				case client.Send <- msg.bytes:
				default:
					log.Printf("Dropping change event for slow client of user %s", msg.userId)
				}
			}

		case reply := <-h.replyCh:
			// The client may have been closed since the reply was queued
			if _, ok := h.userToClients[reply.client.user.Id][reply.client]; ok {
				select {
				case reply.client.Send <- reply.bytes:
				default:
				}
			}

		case userId := <-h.UserDeletedCh:
			if clients, ok := h.userToClients[userId]; ok {
				for client := range clients {
					close(client.Send)
				}
				delete(h.userToClients, userId)
				h.unsubscribe(userId)
			}

		case <-shutdownCtx.Done():
			for userId := range h.userToSubscribeCancel {
				h.unsubscribe(userId)
			}
			return
		}
	}
}

func (h *Hub) open(client *Client) {
	userId := client.user.Id
	if _, ok := h.userToClients[userId]; !ok {
		h.userToClients[userId] = make(map[*Client]struct{})
	}

	if len(h.userToClients[userId]) >= maxConnectionsPerUser {
		log.Printf("User %s reached max connections (%d)", userId, maxConnectionsPerUser)
		close(client.Send)
		if len(h.userToClients[userId]) == 0 {
			delete(h.userToClients, userId)
		}
		return
	}

	if _, ok := h.userToSubscribeCancel[userId]; !ok {
		ctx, cancel := context.WithCancel(context.Background())
		err := h.outlineCache.Subscribe(ctx, cache.OutlineChannel(userId), func(messageBytes []byte) {
			h.forward(userId, messageBytes)
		})
		if err != nil {
			cancel()
			log.Printf("Failed to subscribe to outline changes of user %s: %v", userId, err)
			close(client.Send)
			if len(h.userToClients[userId]) == 0 {
				delete(h.userToClients, userId)
			}
			return
		}
		h.userToSubscribeCancel[userId] = cancel
	}

	h.userToClients[userId][client] = struct{}{}
}

func (h *Hub) remove(client *Client) {
	userId := client.user.Id
	clients, ok := h.userToClients[userId]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.userToClients, userId)
		h.unsubscribe(userId)
	}
}

func (h *Hub) unsubscribe(userId string) {
	if cancel, ok := h.userToSubscribeCancel[userId]; ok {
		cancel()
		delete(h.userToSubscribeCancel, userId)
	}
}

// forward converts a published change into the wire message sent to the
// user's connections. It runs on the subscription goroutine.
func (h *Hub) forward(userId string, messageBytes []byte) {
	var changed models.OutlineChanged
	if err := json.Unmarshal(messageBytes, &changed); err != nil {
		log.Printf("Failed to unmarshal outline change: %v", err)
		return
	}

	out, err := json.Marshal(outlineChangedMessage{
		Type: "outline_changed",
		Data: outlineChangedData{SessionId: changed.SessionId},
	})
	if err != nil {
		return
	}
	h.broadcastCh <- userMessage{userId: userId, bytes: out}
}

func (h *Hub) InitSubscriptions(shutdownCtx context.Context) error {
	err := h.outlineCache.Subscribe(shutdownCtx, cache.UserDeletedChannel, func(message []byte) {
		var userDeletedMsg service.UserDeletedMessage
		if err := json.Unmarshal(message, &userDeletedMsg); err == nil {
			h.UserDeletedCh <- userDeletedMsg.UserId
		} else {
			log.Printf("Failed to unmarshal user-deleted message: %v", err)
		}
	})
	if err != nil {
		log.Printf("WS hub failed to subscribe to user-deleted: %v", err)
		return err
	}

	return nil
}
