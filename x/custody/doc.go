/*
Package custody implements the transfer-request lifecycle state
machine.

A Vault owns two structurally identical request pipelines, one for
native funds and one for fungible tokens. Any signer of the configured
authority can initiate a transfer request, every other signer can add
exactly one approval, and once the quorum is reached any signer can
trigger the one-shot execution that releases the funds from custody
through the ledger service.

A request walks through the following states:

	Created(approvals=1) -> [approve]* -> Approved(approvals>=quorum)
	    -> [execute] -> Executed(terminal)

Executed is terminal. Once a request is executed no further approval
or execution is permitted, even when the external transfer itself
reported a failure. This one-shot policy is deliberate: it prevents
repeated drain attempts against a possibly malicious recipient at the
cost of requiring a fresh request when a transfer genuinely needs a
retry.
*/
package custody
