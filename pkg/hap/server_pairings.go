package hap

import (
	"bytes"

	"github.com/AlexxIT/go2hap/pkg/hap/tlv8"
)

// Pairings handles add, remove and list requests of the verified session.
// Sessions of removed controllers are closed by the server loop after the
// response is written.
func (s *Server) Pairings(session *Session, body []byte) []byte {
	var req struct {
		Method      byte   `tlv8:"0"`
		Identifier  string `tlv8:"1"`
		PublicKey   []byte `tlv8:"3"`
		State       byte   `tlv8:"6"`
		Permissions byte   `tlv8:"11"`
	}
	if err := tlv8.Unmarshal(body, &req); err != nil {
		s.Log.Warn().Err(err).Msgf("[hap] pairings")
		return pairingError(StateM2, ErrorUnknown)
	}

	if req.State != StateM1 {
		return pairingError(StateM2, ErrorUnknown)
	}

	s.pairingsMu.Lock()
	defer s.pairingsMu.Unlock()

	caller := s.Store.FindPairing(session.ClientID())
	if caller == nil || !caller.IsAdmin() {
		s.Log.Warn().Msgf("[hap] pairings from not admin %s", session.ClientID())
		return pairingError(StateM2, ErrorAuthentication)
	}

	switch req.Method {
	case MethodAddPairing:
		return s.addPairing(&Pairing{
			ID:         req.Identifier,
			PublicKey:  req.PublicKey,
			Permission: req.Permissions,
		})

	case MethodDeletePairing:
		return s.removePairing(session, req.Identifier)

	case MethodListPairings:
		return s.listPairings()
	}

	return pairingError(StateM2, ErrorUnknown)
}

func (s *Server) addPairing(pairing *Pairing) []byte {
	if err := pairing.Validate(); err != nil {
		s.Log.Warn().Err(err).Msgf("[hap] add pairing")
		return pairingError(StateM2, ErrorUnknown)
	}

	if existing := s.Store.FindPairing(pairing.ID); existing != nil {
		if !bytes.Equal(existing.PublicKey, pairing.PublicKey) {
			s.Log.Warn().Msgf("[hap] add pairing %s with another public key", pairing.ID)
			return pairingError(StateM2, ErrorUnknown)
		}
	} else if len(s.Store.ListPairings()) >= MaxPairings {
		return pairingError(StateM2, ErrorMaxPeers)
	}

	if err := s.Store.UpsertPairing(pairing); err != nil {
		s.Log.Error().Err(err).Caller().Send()
		return pairingError(StateM2, ErrorUnknown)
	}

	s.Log.Info().Msgf("[hap] add pairing %s permission=%d", pairing.ID, pairing.Permission)

	return stateM2()
}

func (s *Server) removePairing(session *Session, id string) []byte {
	if err := s.Store.RemovePairing(id); err != nil {
		s.Log.Error().Err(err).Caller().Send()
		return pairingError(StateM2, ErrorUnknown)
	}

	removed := []string{id}

	s.Log.Info().Msgf("[hap] remove pairing %s", id)

	// without admins nobody can manage the accessory, so it becomes unpaired
	if s.Store.AdminCount() == 0 {
		for _, pairing := range s.Store.ListPairings() {
			if err := s.Store.RemovePairing(pairing.ID); err != nil {
				s.Log.Error().Err(err).Caller().Send()
				continue
			}
			removed = append(removed, pairing.ID)
			s.Log.Info().Msgf("[hap] remove pairing %s", pairing.ID)
		}
	}

	session.mu.Lock()
	session.removed = append(session.removed, removed...)
	session.mu.Unlock()

	return stateM2()
}

func (s *Server) listPairings() []byte {
	pairings := s.Store.ListPairings()

	entries := make([][]tlv8.Item, 0, len(pairings))
	for i, pairing := range pairings {
		var entry []tlv8.Item
		if i == 0 {
			entry = append(entry, tlv8.Item{Tag: TagState, Value: []byte{StateM2}})
		}
		entry = append(entry,
			tlv8.Item{Tag: TagIdentifier, Value: []byte(pairing.ID)},
			tlv8.Item{Tag: TagPublicKey, Value: pairing.PublicKey},
			tlv8.Item{Tag: TagPermissions, Value: []byte{pairing.Permission}},
		)
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return stateM2()
	}

	return tlv8.EncodeList(entries...)
}

func stateM2() []byte {
	return tlv8.Encode(tlv8.Item{Tag: TagState, Value: []byte{StateM2}})
}
