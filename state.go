package interact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"
	"github.com/naoina/toml"
)

// DefaultStatePath is where the CLI keeps its address book.
const DefaultStatePath = "state.toml"

// Role names a logical deployment tracked by the address book.
type Role uint8

const (
	// RoleCounter is the primary counter contract.
	RoleCounter Role = iota

	// RoleCaller is the caller contract.
	RoleCaller
)

func (r Role) String() string {
	switch r {
	case RoleCounter:
		return "counter"
	case RoleCaller:
		return "caller"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// addressBookFile is the on-disk form of the address book.
type addressBookFile struct {
	CounterAddress string `toml:"counter_address,omitempty"`
	CallerAddress  string `toml:"caller_address,omitempty"`
}

// AddressBook maps each Role to the last address deployed for it. Every
// mutation is persisted before it becomes visible.
type AddressBook struct {
	mu      sync.RWMutex
	path    string
	entries map[Role]common.Address
}

// NewAddressBook creates an empty book persisted at path. An empty path keeps
// the book in memory only.
func NewAddressBook(path string) *AddressBook {
	return &AddressBook{
		path:    path,
		entries: make(map[Role]common.Address),
	}
}

// LoadAddressBook reads the book at path. A missing file yields an empty book.
func LoadAddressBook(path string) (*AddressBook, error) {
	book := NewAddressBook(path)
	if path == "" {
		return book, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return book, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read address book: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return book, nil
	}

	var file addressBookFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse address book %s: %w", path, err)
	}

	for role, raw := range map[Role]string{RoleCounter: file.CounterAddress, RoleCaller: file.CallerAddress} {
		if raw == "" {
			continue
		}
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("parse address book %s: invalid %s address %q", path, role, raw)
		}
		book.entries[role] = common.HexToAddress(raw)
	}
	return book, nil
}

// Path returns the backing file path.
func (b *AddressBook) Path() string {
	return b.path
}

// Get returns the address bound to role, if any.
func (b *AddressBook) Get(role Role) (common.Address, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	addr, ok := b.entries[role]
	return addr, ok
}

// Require returns the address bound to role or a *MissingDependencyError.
func (b *AddressBook) Require(role Role) (common.Address, error) {
	addr, ok := b.Get(role)
	if !ok {
		return common.Address{}, &MissingDependencyError{Role: role}
	}
	return addr, nil
}

// Set binds role to addr, replacing any previous address, and persists the
// book. If persisting fails the in-memory book is left unchanged.
func (b *AddressBook) Set(role Role, addr common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make(map[Role]common.Address, len(b.entries)+1)
	for r, a := range b.entries {
		next[r] = a
	}
	next[role] = addr

	if err := b.persist(next); err != nil {
		return err
	}
	b.entries = next
	log.Debug("Updated address book", "role", role, "address", addr, "path", b.path)
	return nil
}

// Save persists the current entries.
func (b *AddressBook) Save() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.persist(b.entries)
}

func (b *AddressBook) persist(entries map[Role]common.Address) error {
	if b.path == "" {
		return nil
	}

	var file addressBookFile
	if addr, ok := entries[RoleCounter]; ok {
		file.CounterAddress = addr.Hex()
	}
	if addr, ok := entries[RoleCaller]; ok {
		file.CallerAddress = addr.Hex()
	}
	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode address book: %w", err)
	}

	lock := flock.New(b.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock address book: %w", err)
	}
	defer lock.Unlock()

	if err := writeFileAtomic(b.path, data, 0o644); err != nil {
		return fmt.Errorf("write address book: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path with data so readers see either the old or
// the new content, never a partial write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
