package main

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/holochain/holochain-core/pkg/config"
	"github.com/holochain/holochain-core/pkg/gossip"
	"github.com/holochain/holochain-core/pkg/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the conductor: open storage, serve the network and admin interfaces",
	RunE:  runConductor,
}

func init() {
	runCmd.Flags().String("config", "", "path to the conductor's YAML configuration file")
	runCmd.Flags().String("peer-listen-addr", "127.0.0.1:9700", "address the peer-to-peer websocket listener binds")
	_ = runCmd.MarkFlagRequired("config")
}

func runConductor(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	peerAddr, _ := cmd.Flags().GetString("peer-listen-addr")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	conductor, err := NewConductor(cfg, log.Logger)
	if err != nil {
		return fmt.Errorf("build conductor: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/peer", conductor.net.UpgradeHandler(websocket.Upgrader{}, identifyPeerFromHeader))

	peerSrv := &http.Server{Addr: peerAddr, Handler: mux}
	peerErrCh := make(chan error, 1)
	go func() {
		log.Logger.Info().Str("addr", peerAddr).Msg("peer listener starting")
		if err := peerSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			peerErrCh <- err
		}
	}()

	adminSrvs := make([]*http.Server, 0, len(cfg.AdminInterfaces))
	for _, ai := range cfg.AdminInterfaces {
		addr := fmt.Sprintf("127.0.0.1:%d", ai.Port)
		srv := &http.Server{Addr: addr, Handler: conductor.admin}
		adminSrvs = append(adminSrvs, srv)
		go func(srv *http.Server) {
			log.Logger.Info().Str("addr", srv.Addr).Msg("admin listener starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				peerErrCh <- err
			}
		}(srv)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Logger.Info().Msg("shutting down")
	case err := <-peerErrCh:
		log.Logger.Error().Err(err).Msg("listener failed")
	}

	_ = peerSrv.Close()
	for _, srv := range adminSrvs {
		_ = srv.Close()
	}
	conductor.Close()
	return nil
}

// identifyPeerFromHeader derives the connecting peer's certificate
// from an X-Peer-Cert header carrying its 32-byte hex encoding. The
// real handshake that establishes peer identity (§6 "peer identity is
// a 32-byte certificate plus a URL") is outside pkg/network's built
// scope — this is the minimal stand-in until a transport-level
// handshake replaces it.
func identifyPeerFromHeader(r *http.Request) (gossip.PeerCert, error) {
	raw := r.Header.Get("X-Peer-Cert")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 32 {
		return gossip.PeerCert{}, fmt.Errorf("missing or malformed X-Peer-Cert header")
	}
	var cert gossip.PeerCert
	copy(cert[:], decoded)
	return cert, nil
}
