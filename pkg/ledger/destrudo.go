package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Destrudo is a payable contract whose only purpose is to self-destruct and push its
// balance to a beneficiary. It is the one way native currency reaches a contract that
// refuses plain transfers.
type Destrudo struct {
	address common.Address
}

func DeployDestrudo(tx *Tx, deployer common.Address) (*Destrudo, error) {
	c, err := tx.Deploy(deployer, func(addr common.Address) (Contract, error) {
		return &Destrudo{address: addr}, nil
	})
	if err != nil {
		return nil, err
	}
	return c.(*Destrudo), nil
}

func (d *Destrudo) Address() common.Address { return d.address }

func (d *Destrudo) Receive(tx *Tx, from common.Address, value *uint256.Int) error {
	return nil
}

// DestructSelf accepts value from caller and destroys the contract, forcing its whole
// balance onto beneficiary.
func (d *Destrudo) DestructSelf(tx *Tx, caller, beneficiary common.Address, value *uint256.Int) error {
	if !value.IsZero() {
		if err := tx.Transfer(caller, d.address, value); err != nil {
			return err
		}
	}
	return tx.SelfDestruct(d.address, beneficiary)
}
