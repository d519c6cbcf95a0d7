package hap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testPairing(id string, permission byte) *Pairing {
	return &Pairing{ID: id, PublicKey: bytes.Repeat([]byte{id[0]}, 32), Permission: permission}
}

func TestMemoryStore(t *testing.T) {
	var changes [][]*Pairing

	store := NewMemoryStore("AA:BB:CC:DD:EE:FF", GenerateKey(), "031-45-154")
	store.OnChange = func(pairings []*Pairing) {
		changes = append(changes, pairings)
	}

	require.Len(t, store.DevicePublic(), 32)
	require.Nil(t, store.FindPairing("a"))
	require.Equal(t, 0, store.AdminCount())

	require.Nil(t, store.UpsertPairing(testPairing("a", PermissionAdmin)))
	require.Nil(t, store.UpsertPairing(testPairing("b", PermissionUser)))
	require.Equal(t, 1, store.AdminCount())
	require.Len(t, store.ListPairings(), 2)

	// update keeps the order
	require.Nil(t, store.UpsertPairing(testPairing("b", PermissionAdmin)))
	require.Equal(t, 2, store.AdminCount())
	require.Equal(t, "b", store.ListPairings()[1].ID)

	// returned values are copies
	p := store.FindPairing("a")
	p.Permission = PermissionUser
	p.PublicKey[0] = 0
	require.True(t, store.FindPairing("a").IsAdmin())
	require.Equal(t, byte('a'), store.FindPairing("a").PublicKey[0])

	require.Nil(t, store.RemovePairing("a"))
	require.Nil(t, store.RemovePairing("a"))
	require.Nil(t, store.FindPairing("a"))
	require.Len(t, store.ListPairings(), 1)

	// removing a missing pairing is not a change
	require.Len(t, changes, 4)
	require.Len(t, changes[3], 1)
}

func TestPairingValidate(t *testing.T) {
	require.Nil(t, testPairing("a", PermissionUser).Validate())

	p := testPairing("a", PermissionUser)
	p.PublicKey = p.PublicKey[:31]
	require.ErrorIs(t, p.Validate(), ErrInvalidPairing)

	p = testPairing("a", 2)
	require.ErrorIs(t, p.Validate(), ErrInvalidPairing)

	p = &Pairing{PublicKey: make([]byte, 32)}
	require.ErrorIs(t, p.Validate(), ErrInvalidPairing)

	p = &Pairing{ID: string(bytes.Repeat([]byte{'x'}, 65)), PublicKey: make([]byte, 32)}
	require.ErrorIs(t, p.Validate(), ErrInvalidPairing)

	store := NewMemoryStore("AA:BB:CC:DD:EE:FF", GenerateKey(), "031-45-154")
	require.ErrorIs(t, store.UpsertPairing(p), ErrInvalidPairing)
}
