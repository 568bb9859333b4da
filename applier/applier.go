package applier

import (
	"errors"
	"fmt"

	"github.com/eth2030/multiproof-engine/core/types"
	"github.com/eth2030/multiproof-engine/crypto"
	"github.com/eth2030/multiproof-engine/log"
	"github.com/eth2030/multiproof-engine/metrics"
	"github.com/eth2030/multiproof-engine/multiproof"
	"github.com/eth2030/multiproof-engine/oracle"
	"github.com/eth2030/multiproof-engine/rlp"
)

// ErrRootMismatch is returned by Apply when the trie computed after
// applying a delta does not match the header-supplied expected root.
var ErrRootMismatch = multiproof.ErrRootMismatch

// MultiTrie bundles the account trie's multiproof store with one storage
// trie store per account that has been touched, letting a single Apply
// call walk both levels of the state trie as a block's accounts and slots
// change.
type MultiTrie struct {
	Account *multiproof.Store
	Storage map[types.Address]*multiproof.Store
	oracle  *oracle.Oracle
	log     *log.Logger
}

// NewMultiTrie creates a MultiTrie rooted at accountRoot, with storage
// tries added via AddStorageTrie as individual account proofs are loaded.
func NewMultiTrie(accountRoot types.Hash, o *oracle.Oracle) *MultiTrie {
	return &MultiTrie{
		Account: multiproof.NewStore(accountRoot),
		Storage: make(map[types.Address]*multiproof.Store),
		oracle:  o,
		log:     log.Default().Module("applier"),
	}
}

// AddStorageTrie registers a storage trie store for address, rooted at
// storageRoot, so that later Apply calls can mutate that account's slots.
func (m *MultiTrie) AddStorageTrie(address types.Address, storageRoot types.Hash) {
	m.Storage[address] = multiproof.NewStore(storageRoot)
}

// Apply mutates the account and storage tries according to delta and
// returns the resulting account-trie root. It errors with ErrRootMismatch
// if expectedRoot is non-zero and does not match.
//
// Grounded on trie/trie.go's insert/delete orchestration: each changed
// storage slot is applied to its account's storage trie first, then the
// account's own leaf (carrying the new storage root) is applied to the
// account trie.
func (m *MultiTrie) Apply(delta StateDelta, expectedRoot types.Hash) (types.Hash, error) {
	for _, acc := range delta.Accounts {
		if err := m.applyAccount(acc); err != nil {
			return types.Hash{}, fmt.Errorf("account %s: %w", acc.Address.Hex(), err)
		}
	}

	root := m.Account.Root()
	metrics.DefaultRegistry.Counter("applier_accounts_applied").Add(int64(len(delta.Accounts)))
	if !expectedRoot.IsZero() && root != expectedRoot {
		return root, fmt.Errorf("%w: computed %s, expected %s", ErrRootMismatch, root.Hex(), expectedRoot.Hex())
	}
	return root, nil
}

func (m *MultiTrie) applyAccount(acc AccountDelta) error {
	accountPath := multiproof.NewPathFromKey(crypto.Keccak256(acc.Address.Bytes()))

	var storageRoot types.Hash
	if len(acc.Storage) > 0 {
		store, ok := m.Storage[acc.Address]
		if !ok {
			return fmt.Errorf("%w: no storage trie registered for account", multiproof.ErrMissingNode)
		}
		for _, slot := range acc.Storage {
			slotPath := multiproof.NewPathFromKey(crypto.Keccak256(slot.Key.Bytes()))
			intent := m.intentFor(slot.PostRLP)
			if err := m.traverseWithOracle(store, acc.Address, slotPath, intent); err != nil {
				return fmt.Errorf("slot %s: %w", slot.Key.Hex(), err)
			}
		}
		storageRoot = store.Root()
		metrics.DefaultRegistry.Counter("applier_slots_applied").Add(int64(len(acc.Storage)))
	}

	postRLP := acc.PostRLP
	if storageRoot != (types.Hash{}) && len(postRLP) > 0 {
		postRLP = withStorageRoot(postRLP, storageRoot)
	}
	intent := m.intentFor(postRLP)
	return m.traverseWithOracle(m.Account, acc.Address, accountPath, intent)
}

func (m *MultiTrie) intentFor(postRLP []byte) multiproof.Intent {
	if len(postRLP) == 0 || multiproof.IsEmptyValue(postRLP) {
		return multiproof.Remove()
	}
	return multiproof.Modify(postRLP)
}

// traverseWithOracle runs Traverse, and on an ErrMissingNode (a collapse
// needing a sibling's bytes that this address's own proof never included)
// consults the oracle for nodes at the failing point and retries once.
func (m *MultiTrie) traverseWithOracle(store *multiproof.Store, address types.Address, path multiproof.Path, intent multiproof.Intent) error {
	err := multiproof.Traverse(store, path, intent)
	if err == nil {
		return nil
	}
	if m.oracle == nil || !errors.Is(err, multiproof.ErrMissingNode) {
		return err
	}
	nodes, ok := m.oracle.Lookup(address, path)
	if !ok {
		return err
	}
	for _, raw := range nodes {
		store.Insert(raw)
	}
	m.log.Debug("retried traversal with oracle nodes", "address", address.Hex(), "count", len(nodes))
	return multiproof.Traverse(store, path, intent)
}

// withStorageRoot decodes an RLP-encoded Account, replaces its storage
// root, and re-encodes it.
func withStorageRoot(accountRLP []byte, storageRoot types.Hash) []byte {
	var acc types.Account
	if err := rlp.DecodeBytes(accountRLP, &acc); err != nil {
		return accountRLP
	}
	acc.Root = storageRoot
	enc, err := rlp.EncodeToBytes(&acc)
	if err != nil {
		return accountRLP
	}
	return enc
}
