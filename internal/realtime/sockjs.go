package realtime

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"

	"tableflow/internal/logger"
)

const (
	DefaultPrefix = "/realtime"

	closeMissingTenant = 4001
)

const clientBuffer = 32

// ControlMessage lets a connected client join or leave role rooms of its
// own tenant.
type ControlMessage struct {
	Action string `json:"action"`
	Role   string `json:"role"`
}

func ParseControl(data string) (ControlMessage, bool) {
	var msg ControlMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return ControlMessage{}, false
	}
	if (msg.Action != "join" && msg.Action != "leave") || msg.Role == "" {
		return ControlMessage{}, false
	}
	return msg, true
}

// Server exposes the hub over SockJS. Clients connect with ?tenant_id=...
// and an optional comma separated ?roles=... list.
type Server struct {
	hub    *Hub
	prefix string
	logger logger.Logger
}

func NewServer(hub *Hub, prefix string, log logger.Logger) *Server {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Server{hub: hub, prefix: prefix, logger: log}
}

func (s *Server) Handler() http.Handler {
	return sockjs.NewHandler(s.prefix, sockjs.DefaultOptions, s.serve)
}

func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.Any(s.prefix+"/*any", gin.WrapH(s.Handler()))
}

func (s *Server) serve(session sockjs.Session) {
	req := session.Request()
	tenantID := strings.TrimSpace(req.URL.Query().Get("tenant_id"))
	if tenantID == "" {
		_ = session.Close(closeMissingTenant, "missing tenant_id")
		return
	}

	client := NewClient(uuid.NewString(), tenantID, clientBuffer)
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	s.hub.Join(client, TenantRoom(tenantID))
	for _, role := range splitRoles(req.URL.Query().Get("roles")) {
		s.hub.Join(client, RoleRoom(tenantID, role))
	}

	s.logger.Infow("Realtime client connected", "client_id", client.ID, "tenant_id", tenantID)

	go func() {
		for msg := range client.Send {
			if err := session.Send(string(msg)); err != nil {
				return
			}
		}
	}()

	for {
		raw, err := session.Recv()
		if err != nil {
			s.logger.Infow("Realtime client disconnected", "client_id", client.ID, "tenant_id", tenantID)
			return
		}
		s.control(client, raw)
	}
}

func (s *Server) control(client *Client, raw string) {
	msg, ok := ParseControl(raw)
	if !ok {
		return
	}
	room := RoleRoom(client.TenantID, msg.Role)
	if msg.Action == "join" {
		s.hub.Join(client, room)
		return
	}
	s.hub.Leave(client, room)
}

func splitRoles(raw string) []string {
	roles := make([]string, 0)
	for _, role := range strings.Split(raw, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
