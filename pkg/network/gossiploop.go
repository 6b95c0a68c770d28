package network

import (
	"context"
	"fmt"
	"time"

	"github.com/holochain/holochain-core/pkg/gossip"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/holochain/holochain-core/pkg/trigger"
	"github.com/rs/zerolog"
)

// GossipDriver periodically initiates a gossip round for one
// space/module, generalizing the teacher's reconciler/scheduler
// periodic-tick run loop (via pkg/trigger) into §4.7's "initiate
// interval ≤ 10s" requirement: each tick expires stale rounds, then
// tries to pick a target and start a round against it.
type GossipDriver struct {
	mgr         *Manager
	engine      *gossip.Engine
	dna         holo.DnaHash
	module      gossip.Module
	localAgents func() []holo.AgentPubKey

	loop *trigger.Loop
}

// NewGossipDriver wires a driver for one space/module pair.
// localAgents is called fresh on every tick so newly-installed
// agents on this node are offered in the next Initiate.
func NewGossipDriver(mgr *Manager, engine *gossip.Engine, dna holo.DnaHash, module gossip.Module, localAgents func() []holo.AgentPubKey, logger zerolog.Logger) *GossipDriver {
	d := &GossipDriver{mgr: mgr, engine: engine, dna: dna, module: module, localAgents: localAgents}
	name := fmt.Sprintf("gossip-%s-%s", dna.String(), module)
	d.loop = trigger.NewLoop(name, gossip.DefaultInitiateInterval, logger, d.tick)
	return d
}

// Start begins the driver's periodic ticking.
func (d *GossipDriver) Start(ctx context.Context) { d.loop.Start(ctx) }

// Stop cooperatively stops the driver.
func (d *GossipDriver) Stop() { d.loop.Stop() }

func (d *GossipDriver) tick(ctx context.Context) error {
	d.engine.ExpireRounds(d.module, time.Now())

	target, ok := d.engine.SelectInitiateTarget(d.module)
	if !ok {
		return nil
	}
	_, w, ok := d.engine.Initiate(d.module, d.localAgents())
	if !ok {
		return nil
	}
	return d.mgr.SendGossip(ctx, target, d.dna, d.module, w)
}
