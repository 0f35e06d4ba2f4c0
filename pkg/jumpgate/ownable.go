package jumpgate

import (
	"fmt"

	"github.com/aremia/jumpgates/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
)

// ownable is a single-owner access guard.
type ownable struct {
	owner common.Address
}

func (o *ownable) onlyOwner(caller common.Address) error {
	if caller != o.owner || o.owner == (common.Address{}) {
		return fmt.Errorf("%w: %s", ErrCallerNotOwner, caller)
	}
	return nil
}

// setOwner journals the change and emits OwnershipTransferred from emitter.
func (o *ownable) setOwner(tx *ledger.Tx, emitter, newOwner common.Address) error {
	prev := o.owner
	if err := tx.OnRevert(func() { o.owner = prev }); err != nil {
		return err
	}
	o.owner = newOwner
	return ledger.EmitEvent(tx, emitter, evOwnershipTransferred, prev, newOwner)
}
