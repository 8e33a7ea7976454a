package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"recycletek/internal/domain"
	"recycletek/internal/identity"
	"recycletek/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Resolver interface {
	Resolve(ctx context.Context, creds identity.Credentials) (*models.User, error)
}

type WalletReader interface {
	GetOrCreate(ctx context.Context, userID uint) (*models.Wallet, error)
}

// UpgradeWalletWS authenticates with ?kiosk_id= or ?token= before upgrading, sends the
// current balance, then streams balance events until the client disconnects.
func UpgradeWalletWS(resolver Resolver, wallets WalletReader, hub *WalletHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds := identity.Credentials{KioskID: strings.TrimSpace(c.Query("kiosk_id"))}
		if token := strings.TrimSpace(c.Query("token")); token != "" {
			creds.Authorization = "Bearer " + token
		}
		user, err := resolver.Resolve(c.Request.Context(), creds)
		if err != nil {
			status, msg := domain.StatusAndMessage(err)
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}
		wallet, err := wallets.GetOrCreate(c.Request.Context(), user.ID)
		if err != nil {
			hub.log.Error("ws wallet snapshot", "user_id", user.ID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := NewClient(user.ID)
		hub.Register(client)
		defer client.Close()

		snapshot, _ := json.Marshal(balanceEvent(wallet.BalanceCents, "snapshot"))
		client.trySend(snapshot)
		go writePump(client, conn)
		readPump(conn)
	}
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages; it returns when the connection drops.
func readPump(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
