package custody

import "github.com/iov-one/custodian"

// Class names the request pipeline an event belongs to.
type Class string

const (
	// ClassNative marks events of the native funds pipeline.
	ClassNative Class = "native"
	// ClassToken marks events of the token pipeline.
	ClassToken Class = "token"
)

// Event is implemented by all notifications published by a Vault.
type Event interface {
	event()
}

// InitiatedEvent is published when a new transfer request was created.
type InitiatedEvent struct {
	Class     Class
	ID        uint64
	Initiator custodian.Address
	Recipient custodian.Address
	Amount    int64
	// Asset is nil for native requests.
	Asset custodian.Address
}

// ApprovedEvent is published for every accepted vote, including the
// implicit vote of the initiator.
type ApprovedEvent struct {
	Class     Class
	ID        uint64
	Approver  custodian.Address
	Approvals int64
}

// ExecutedEvent is published after a request reached its terminal
// state and the external transfer call returned successfully.
type ExecutedEvent struct {
	Class    Class
	ID       uint64
	Executor custodian.Address
}

// SignersChangedEvent is reserved for governance extensions that
// rotate the signer set. The current Vault never publishes it because
// its authority is immutable.
type SignersChangedEvent struct {
	Signers []custodian.Address
}

// QuorumChangedEvent is reserved for governance extensions that adjust
// the approval threshold. The current Vault never publishes it.
type QuorumChangedEvent struct {
	Quorum int
}

func (InitiatedEvent) event()      {}
func (ApprovedEvent) event()       {}
func (ExecutedEvent) event()       {}
func (SignersChangedEvent) event() {}
func (QuorumChangedEvent) event()  {}

// Emitter receives lifecycle events. Implementations must not call
// back into the Vault they observe.
type Emitter interface {
	Emit(Event)
}

// NopEmitter discards all events. It is the default when a Vault is
// created without an emitter.
type NopEmitter struct{}

// Emit implements the Emitter interface.
func (NopEmitter) Emit(Event) {}
