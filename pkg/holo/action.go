package holo

import "time"

// ActionType discriminates the variants an Action can take.
type ActionType string

const (
	ActionDna                 ActionType = "Dna"
	ActionAgentValidationPkg  ActionType = "AgentValidationPkg"
	ActionInitZomesComplete   ActionType = "InitZomesComplete"
	ActionCreate              ActionType = "Create"
	ActionUpdate              ActionType = "Update"
	ActionDelete              ActionType = "Delete"
	ActionCreateLink          ActionType = "CreateLink"
	ActionDeleteLink          ActionType = "DeleteLink"
	ActionOpenChain           ActionType = "OpenChain"
	ActionCloseChain          ActionType = "CloseChain"
)

// EntryVisibility controls whether an entry is served to other agents.
type EntryVisibility string

const (
	EntryPublic  EntryVisibility = "Public"
	EntryPrivate EntryVisibility = "Private"
)

// EntryKind identifies which Entry variant an entry-bearing action points at.
type EntryKind string

const (
	EntryKindApp        EntryKind = "App"
	EntryKindAgent      EntryKind = "Agent"
	EntryKindCapClaim   EntryKind = "CapClaim"
	EntryKindCapGrant   EntryKind = "CapGrant"
	EntryKindCounterSign EntryKind = "CounterSign"
)

// EntryType is the (zome_index, entry_index, visibility) triple an app
// entry declares; non-app kinds leave ZomeIndex/EntryIndex zero.
type EntryType struct {
	Kind       EntryKind
	ZomeIndex  uint8
	EntryIndex uint8
	Visibility EntryVisibility
}

// Action is a signed, chained record authored by one agent. It is
// expressed as one flat struct rather than one Go type per variant so
// that canonical encoding, hashing and storage stay uniform; Type
// selects which of the variant-specific fields below are meaningful.
//
// Fields shared by every variant: Author, Timestamp, ActionSeq,
// PrevAction (required for every type except Dna).
type Action struct {
	Type       ActionType
	Author     AgentPubKey
	Timestamp  time.Time
	ActionSeq  uint32
	PrevAction *ActionHash

	// Dna
	DnaHash     DnaHash
	NetworkSeed string

	// AgentValidationPkg
	MembraneProof []byte

	// Create / Update (entry-bearing)
	EntryType EntryType
	EntryHash EntryHash

	// Update only
	OriginalActionHash ActionHash
	OriginalEntryHash  EntryHash

	// Delete
	DeletedActionHash ActionHash
	DeletedEntryHash  EntryHash

	// CreateLink
	BaseAddress AnyLinkableHash
	TargetAddress AnyLinkableHash
	ZomeIndex   uint8
	LinkType    uint8
	Tag         []byte

	// DeleteLink
	LinkAddress ActionHash

	// OpenChain
	PrevDnaHash DnaHash

	// CloseChain
	NewDnaHash DnaHash
}

// IsEntryBearing reports whether this action variant carries an entry,
// i.e. has an EntryHash that must match a stored Entry.
func (a Action) IsEntryBearing() bool {
	return a.Type == ActionCreate || a.Type == ActionUpdate
}

// RequiresPrevAction reports whether PrevAction must be set; only the
// chain-genesis Dna action is exempt.
func (a Action) RequiresPrevAction() bool {
	return a.Type != ActionDna
}
