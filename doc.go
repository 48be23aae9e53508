/*
Package custodian provides the kernel types shared by all packages of
the custodian engine.

Custodian is a quorum-based custodial approval engine: a fixed set of
authorized signers must collectively approve a proposed transfer of
custodied funds (native currency or fungible token) before it is
released. The root package holds only the common vocabulary - account
addresses and the key-value storage contracts - while the actual
machinery lives in the subpackages:

	errors         typed, code-registered errors
	codec          deterministic CBOR marshaling
	store          in-memory btree-backed KVStore
	orm            buckets and sequences on top of a KVStore
	x/authority    the signer set and quorum threshold
	x/cash         the balance ledger holding custodied funds
	x/custody      the transfer-request lifecycle state machine

See x/custody for the engine entry point.
*/
package custodian
