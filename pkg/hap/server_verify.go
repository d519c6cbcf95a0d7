package hap

import (
	"github.com/AlexxIT/go2hap/pkg/hap/chacha20poly1305"
	"github.com/AlexxIT/go2hap/pkg/hap/curve25519"
	"github.com/AlexxIT/go2hap/pkg/hap/ed25519"
	"github.com/AlexxIT/go2hap/pkg/hap/hkdf"
	"github.com/AlexxIT/go2hap/pkg/hap/tlv8"
)

// PairVerify handles one pair-verify request (M1 or M3). The shared key is
// returned only with a successful M4, the caller must switch the connection
// to the secure session right after the response.
func (s *Server) PairVerify(session *Session, body []byte) (res []byte, sharedKey []byte) {
	var req struct {
		PublicKey     []byte `tlv8:"3"`
		EncryptedData []byte `tlv8:"5"`
		State         byte   `tlv8:"6"`
	}
	if err := tlv8.Unmarshal(body, &req); err != nil {
		s.Log.Warn().Err(err).Msgf("[hap] pair-verify")
		session.resetVerify()
		return pairingError(StateM2, ErrorUnknown), nil
	}

	switch req.State {
	case StateM1:
		return s.pairVerifyM1(session, req.PublicKey), nil
	case StateM3:
		return s.pairVerifyM3(session, req.EncryptedData)
	}

	s.Log.Warn().Msgf("[hap] pair-verify wrong state: %d", req.State)
	session.resetVerify()
	return pairingError(nextState(req.State), ErrorUnknown), nil
}

func (s *Server) pairVerifyM1(session *Session, remotePublic []byte) []byte {
	s.Log.Debug().Msgf("[hap] pair-verify M1 from %s", session.RemoteAddr())

	session.resetVerify()

	sessionPublic, sessionPrivate := curve25519.GenerateKeyPair()

	sessionShared, err := curve25519.SharedSecret(sessionPrivate, remotePublic)
	if err != nil {
		s.Log.Warn().Err(err).Msgf("[hap] pair-verify M1")
		return pairingError(StateM2, ErrorAuthentication)
	}

	encryptKey, err := hkdf.Sha512(sessionShared, "Pair-Verify-Encrypt-Salt", "Pair-Verify-Encrypt-Info")
	if err != nil {
		return pairingError(StateM2, ErrorUnknown)
	}

	// our session + our ID + controller session
	deviceID := s.Store.DeviceID()

	b := Append(sessionPublic, deviceID, remotePublic)
	signature, err := ed25519.Signature(s.Store.DevicePrivate(), b)
	if err != nil {
		s.Log.Error().Err(err).Caller().Send()
		return pairingError(StateM2, ErrorUnknown)
	}

	plainM2 := struct {
		Identifier string `tlv8:"1"`
		Signature  []byte `tlv8:"10"`
	}{
		Identifier: deviceID,
		Signature:  signature,
	}

	if b, err = chacha20poly1305.Encrypt(encryptKey, "PV-Msg02", mustMarshal(plainM2)); err != nil {
		return pairingError(StateM2, ErrorUnknown)
	}

	session.verifyState = StateM2
	session.verifyPublic = sessionPublic
	session.verifyRemote = remotePublic
	session.verifyShared = sessionShared
	session.verifyEncryptKey = encryptKey

	cipherM2 := struct {
		PublicKey     []byte `tlv8:"3"`
		EncryptedData []byte `tlv8:"5"`
		State         byte   `tlv8:"6"`
	}{
		PublicKey:     sessionPublic,
		EncryptedData: b,
		State:         StateM2,
	}
	return mustMarshal(cipherM2)
}

func (s *Server) pairVerifyM3(session *Session, encryptedData []byte) ([]byte, []byte) {
	if session.verifyState != StateM2 {
		s.Log.Warn().Msgf("[hap] pair-verify M3 out of order")
		session.resetVerify()
		return pairingError(StateM4, ErrorUnknown), nil
	}

	// one M3 per M1
	defer session.resetVerify()

	b, err := chacha20poly1305.Decrypt(session.verifyEncryptKey, "PV-Msg03", encryptedData)
	if err != nil {
		s.Log.Warn().Err(err).Msgf("[hap] pair-verify M3")
		return pairingError(StateM4, ErrorAuthentication), nil
	}

	var plainM3 struct {
		Identifier string `tlv8:"1"`
		Signature  []byte `tlv8:"10"`
	}
	if err = tlv8.Unmarshal(b, &plainM3); err != nil {
		s.Log.Warn().Err(err).Msgf("[hap] pair-verify M3")
		return pairingError(StateM4, ErrorUnknown), nil
	}

	// a concurrent removal either happens before the lookup or closes
	// the session after it
	s.pairingsMu.Lock()
	defer s.pairingsMu.Unlock()

	pairing := s.Store.FindPairing(plainM3.Identifier)
	if pairing == nil {
		s.Log.Warn().Msgf("[hap] pair-verify unknown client %s", plainM3.Identifier)
		return pairingError(StateM4, ErrorAuthentication), nil
	}

	if code, delay := s.limiter.check(pairing.ID); code != 0 {
		s.Log.Warn().Msgf("[hap] pair-verify limited %s: %s", pairing.ID, code)
		return backoffError(StateM4, delay), nil
	}

	// controller session + controller ID + our session
	b = Append(session.verifyRemote, plainM3.Identifier, session.verifyPublic)
	if !ed25519.ValidateSignature(pairing.PublicKey, b, plainM3.Signature) {
		s.Log.Warn().Msgf("[hap] pair-verify wrong signature from %s", pairing.ID)
		s.limiter.fail(pairing.ID)
		return pairingError(StateM4, ErrorAuthentication), nil
	}

	s.limiter.reset(pairing.ID)

	sharedKey := session.verifyShared

	session.mu.Lock()
	session.clientID = pairing.ID
	session.mu.Unlock()

	s.Log.Debug().Msgf("[hap] pair-verify done for %s", pairing.ID)

	plainM4 := struct {
		State byte `tlv8:"6"`
	}{
		State: StateM4,
	}
	return mustMarshal(plainM4), sharedKey
}

func (s *Session) resetVerify() {
	s.verifyState = 0
	s.verifyPublic = nil
	s.verifyRemote = nil
	s.verifyShared = nil
	s.verifyEncryptKey = nil
}
