package hap

import (
	"fmt"
	"sync"

	"github.com/AlexxIT/go2hap/pkg/hap/ed25519"
)

// Pairing is a controller allowed to open secure sessions
type Pairing struct {
	ID         string `json:"id"`
	PublicKey  []byte `json:"public_key"` // Ed25519
	Permission byte   `json:"permission"`
}

func (p *Pairing) IsAdmin() bool {
	return p.Permission == PermissionAdmin
}

func (p *Pairing) Validate() error {
	if p.ID == "" || len(p.ID) > MaxIdentifier {
		return fmt.Errorf("%w: identifier length %d", ErrInvalidPairing, len(p.ID))
	}
	if len(p.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key length %d", ErrInvalidPairing, len(p.PublicKey))
	}
	if p.Permission > PermissionAdmin {
		return fmt.Errorf("%w: permission %d", ErrInvalidPairing, p.Permission)
	}
	return nil
}

func (p *Pairing) clone() *Pairing {
	c := *p
	c.PublicKey = append([]byte(nil), p.PublicKey...)
	return &c
}

// Store keeps the accessory identity and the list of paired controllers.
// Calls are synchronous: a write is visible to the next read.
type Store interface {
	DeviceID() string
	// DevicePrivate returns the 64 byte Ed25519 long-term key
	DevicePrivate() []byte
	// SetupCode returns the pin, with or without dashes
	SetupCode() string

	FindPairing(id string) *Pairing
	UpsertPairing(p *Pairing) error
	RemovePairing(id string) error
	ListPairings() []*Pairing
	AdminCount() int
}

type MemoryStore struct {
	// OnChange is called after every change of the pairings list
	OnChange func(pairings []*Pairing)

	deviceID  string
	private   []byte
	setupCode string

	pairings []*Pairing
	mu       sync.RWMutex
}

func NewMemoryStore(deviceID string, private []byte, setupCode string, pairings ...*Pairing) *MemoryStore {
	s := &MemoryStore{
		deviceID:  deviceID,
		private:   private,
		setupCode: setupCode,
	}
	for _, p := range pairings {
		s.pairings = append(s.pairings, p.clone())
	}
	return s
}

func (s *MemoryStore) DeviceID() string {
	return s.deviceID
}

func (s *MemoryStore) DevicePrivate() []byte {
	return s.private
}

func (s *MemoryStore) DevicePublic() []byte {
	return ed25519.PublicKey(s.private)
}

func (s *MemoryStore) SetupCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.setupCode
}

func (s *MemoryStore) FindPairing(id string) *Pairing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.index(id); i >= 0 {
		return s.pairings[i].clone()
	}
	return nil
}

func (s *MemoryStore) UpsertPairing(p *Pairing) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if i := s.index(p.ID); i >= 0 {
		s.pairings[i] = p.clone()
	} else {
		s.pairings = append(s.pairings, p.clone())
	}
	pairings := s.list()
	s.mu.Unlock()

	s.changed(pairings)
	return nil
}

func (s *MemoryStore) RemovePairing(id string) error {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.pairings = append(s.pairings[:i], s.pairings[i+1:]...)
	pairings := s.list()
	s.mu.Unlock()

	s.changed(pairings)
	return nil
}

func (s *MemoryStore) ListPairings() []*Pairing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list()
}

func (s *MemoryStore) AdminCount() (n int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pairings {
		if p.IsAdmin() {
			n++
		}
	}
	return
}

func (s *MemoryStore) index(id string) int {
	for i, p := range s.pairings {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) list() []*Pairing {
	pairings := make([]*Pairing, 0, len(s.pairings))
	for _, p := range s.pairings {
		pairings = append(pairings, p.clone())
	}
	return pairings
}

func (s *MemoryStore) changed(pairings []*Pairing) {
	if s.OnChange != nil {
		s.OnChange(pairings)
	}
}
