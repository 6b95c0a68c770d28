package network

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/holochain/holochain-core/pkg/wire"
	"github.com/rs/zerolog"
)

// AdminCommand enumerates the §6 admin ws text command surface. This
// package only frames and dispatches these commands; the commands
// themselves are implemented wherever the conductor wires an
// AdminHandler (cmd/holochain), since the full admin/app API surface
// remains out of scope here.
type AdminCommand string

const (
	CmdRegisterDna               AdminCommand = "RegisterDna"
	CmdInstallAppBundle          AdminCommand = "InstallAppBundle"
	CmdEnableApp                 AdminCommand = "EnableApp"
	CmdListDnas                  AdminCommand = "ListDnas"
	CmdListAppInterfaces         AdminCommand = "ListAppInterfaces"
	CmdAttachAppInterface        AdminCommand = "AttachAppInterface"
	CmdGrantZomeCallCapability   AdminCommand = "GrantZomeCallCapability"
	CmdDumpNetworkStats          AdminCommand = "DumpNetworkStats"
	CmdDumpFullState             AdminCommand = "DumpFullState"
	CmdListCellIds               AdminCommand = "ListCellIds"
)

// AdminRequest is one text command sent over the admin websocket.
// Payload is command-specific msgpack, decoded by the registered
// AdminHandler.
type AdminRequest struct {
	Command AdminCommand
	Payload []byte
}

// AdminResponse answers an AdminRequest. A typed error variant, per
// §6 "admin/app ws replies carry a typed error variant".
type AdminResponse struct {
	Ok      bool
	Payload []byte
	Error   string
}

// AdminHandler implements one admin command.
type AdminHandler func(ctx context.Context, req AdminRequest) (AdminResponse, error)

// AdminServer is the websocket front door for the admin interface
// named in §6 (`admin_interfaces: Websocket{port, allowed_origins}`).
// Framing is one msgpack-encoded AdminRequest/AdminResponse per
// websocket message — gorilla/websocket already delimits messages, so
// no extra length prefix is layered on top here, unlike the raw-socket
// length-prefixed framing pkg/wire.WriteFrame provides for transports
// that don't.
type AdminServer struct {
	upgrader websocket.Upgrader
	handlers map[AdminCommand]AdminHandler
	logger   zerolog.Logger
}

// NewAdminServer builds an AdminServer restricted to the configured
// allowed origins (§6 admin_interfaces.allowed_origins).
func NewAdminServer(allowedOrigins []string, logger zerolog.Logger) *AdminServer {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &AdminServer{
		handlers: map[AdminCommand]AdminHandler{},
		logger:   logger.With().Str("component", "adminws").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// Handle registers the handler for cmd, overwriting any previous one.
func (s *AdminServer) Handle(cmd AdminCommand, h AdminHandler) {
	s.handlers[cmd] = h
}

// ServeHTTP upgrades the connection and serves AdminRequests until the
// client disconnects.
func (s *AdminServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("admin websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req AdminRequest
		if err := wire.Unmarshal(data, &req); err != nil {
			s.writeResponse(conn, AdminResponse{Error: fmt.Sprintf("malformed request: %v", err)})
			continue
		}

		resp := s.dispatch(req)
		s.writeResponse(conn, resp)
	}
}

func (s *AdminServer) dispatch(req AdminRequest) AdminResponse {
	h, ok := s.handlers[req.Command]
	if !ok {
		return AdminResponse{Error: fmt.Sprintf("unrecognized command %q", req.Command)}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := h(ctx, req)
	if err != nil {
		return AdminResponse{Error: err.Error()}
	}
	resp.Ok = true
	return resp
}

func (s *AdminServer) writeResponse(conn *websocket.Conn, resp AdminResponse) {
	data, err := wire.Marshal(resp)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write admin response")
	}
}

// AdminClient is the dialing counterpart used by cmd/holochain to
// issue one-shot admin commands.
type AdminClient struct {
	conn *websocket.Conn
}

// DialAdmin connects to an admin websocket listener at url.
func DialAdmin(ctx context.Context, url string) (*AdminClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("network: dial admin %s: %w", url, err)
	}
	return &AdminClient{conn: conn}, nil
}

// Call sends one AdminRequest and waits for its AdminResponse.
func (c *AdminClient) Call(cmd AdminCommand, payload []byte) (AdminResponse, error) {
	data, err := wire.Marshal(AdminRequest{Command: cmd, Payload: payload})
	if err != nil {
		return AdminResponse{}, err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return AdminResponse{}, fmt.Errorf("network: admin call write: %w", err)
	}

	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return AdminResponse{}, fmt.Errorf("network: admin call read: %w", err)
	}
	var resp AdminResponse
	if err := wire.Unmarshal(raw, &resp); err != nil {
		return AdminResponse{}, fmt.Errorf("network: admin call decode: %w", err)
	}
	return resp, nil
}

// Close closes the underlying connection.
func (c *AdminClient) Close() error { return c.conn.Close() }
