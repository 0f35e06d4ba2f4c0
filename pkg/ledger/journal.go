package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// journalEntry is a modification that can be undone when a transaction reverts.
type journalEntry interface {
	revert(s *State)
}

// journal tracks state modifications of the transaction in flight. Snapshots are
// indexes into the entry list.
type journal struct {
	entries []journalEntry
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

func (j *journal) length() int {
	return len(j.entries)
}

// revert undoes all entries after the given snapshot, newest first.
func (j *journal) revert(s *State, snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		j.entries[i].revert(s)
	}
	j.entries = j.entries[:snapshot]
}

func (j *journal) reset() {
	j.entries = j.entries[:0]
}

type (
	balanceChange struct {
		account common.Address
		prev    *uint256.Int
	}

	nonceChange struct {
		account common.Address
		prev    uint64
	}

	contractCreated struct {
		account common.Address
	}

	contractDestroyed struct {
		account  common.Address
		contract Contract
	}

	logAdded struct{}

	// undoChange lets contracts journal their own storage.
	undoChange struct {
		undo func()
	}
)

func (c balanceChange) revert(s *State) {
	if c.prev == nil {
		delete(s.balances, c.account)
		return
	}
	s.balances[c.account] = c.prev
}

func (c nonceChange) revert(s *State) {
	s.nonces[c.account] = c.prev
}

func (c contractCreated) revert(s *State) {
	delete(s.contracts, c.account)
}

func (c contractDestroyed) revert(s *State) {
	s.contracts[c.account] = c.contract
}

func (logAdded) revert(s *State) {
	s.pending = s.pending[:len(s.pending)-1]
}

func (c undoChange) revert(*State) {
	c.undo()
}
