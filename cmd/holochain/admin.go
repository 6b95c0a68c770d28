package main

import (
	"context"
	"fmt"

	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/holochain/holochain-core/pkg/network"
	"github.com/holochain/holochain-core/pkg/wire"
)

// registerAdminHandlers wires the §6 CLI surface's ten admin commands
// to this conductor. Most are thin: the full admin/app API (app
// bundles, capability grants, cell lifecycle) is out of scope per §1,
// so InstallAppBundle/EnableApp/ListAppInterfaces/AttachAppInterface/
// GrantZomeCallCapability/ListCellIds answer every request with an
// error naming the command as not implemented, while RegisterDna/ListDnas/
// DumpNetworkStats/DumpFullState exercise the real registry and
// network manager underneath.
func (c *Conductor) registerAdminHandlers() {
	c.admin.Handle(network.CmdRegisterDna, c.handleRegisterDna)
	c.admin.Handle(network.CmdListDnas, c.handleListDnas)
	c.admin.Handle(network.CmdDumpNetworkStats, c.handleDumpNetworkStats)
	c.admin.Handle(network.CmdDumpFullState, c.handleDumpFullState)
	c.admin.Handle(network.CmdInstallAppBundle, notImplementedHandler("InstallAppBundle"))
	c.admin.Handle(network.CmdEnableApp, notImplementedHandler("EnableApp"))
	c.admin.Handle(network.CmdListAppInterfaces, notImplementedHandler("ListAppInterfaces"))
	c.admin.Handle(network.CmdAttachAppInterface, notImplementedHandler("AttachAppInterface"))
	c.admin.Handle(network.CmdGrantZomeCallCapability, notImplementedHandler("GrantZomeCallCapability"))
	c.admin.Handle(network.CmdListCellIds, notImplementedHandler("ListCellIds"))
}

func notImplementedHandler(name string) network.AdminHandler {
	return func(ctx context.Context, req network.AdminRequest) (network.AdminResponse, error) {
		return network.AdminResponse{}, fmt.Errorf("%s: the full admin/app API surface is out of scope", name)
	}
}

func (c *Conductor) handleRegisterDna(ctx context.Context, req network.AdminRequest) (network.AdminResponse, error) {
	var payload struct{ DnaHashHex string }
	if err := wire.Unmarshal(req.Payload, &payload); err != nil {
		return network.AdminResponse{}, fmt.Errorf("malformed RegisterDna payload: %w", err)
	}
	dna, err := holo.ParseDnaHash(payload.DnaHashHex)
	if err != nil {
		return network.AdminResponse{}, fmt.Errorf("malformed dna hash: %w", err)
	}
	if err := c.RegisterDna(dna); err != nil {
		return network.AdminResponse{}, err
	}
	body, _ := wire.Marshal(map[string]string{"dna_hash": dna.String()})
	return network.AdminResponse{Payload: body}, nil
}

func (c *Conductor) handleListDnas(ctx context.Context, req network.AdminRequest) (network.AdminResponse, error) {
	body, err := wire.Marshal(c.ListDnas())
	if err != nil {
		return network.AdminResponse{}, err
	}
	return network.AdminResponse{Payload: body}, nil
}

func (c *Conductor) handleDumpNetworkStats(ctx context.Context, req network.AdminRequest) (network.AdminResponse, error) {
	body, err := wire.Marshal(c.DumpNetworkStats())
	if err != nil {
		return network.AdminResponse{}, err
	}
	return network.AdminResponse{Payload: body}, nil
}

func (c *Conductor) handleDumpFullState(ctx context.Context, req network.AdminRequest) (network.AdminResponse, error) {
	body, err := wire.Marshal(c.DumpFullState())
	if err != nil {
		return network.AdminResponse{}, err
	}
	return network.AdminResponse{Payload: body}, nil
}
