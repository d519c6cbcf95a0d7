package hap

import (
	"encoding/binary"

	"github.com/AlexxIT/go2hap/pkg/hap/chacha20poly1305"
	"github.com/AlexxIT/go2hap/pkg/hap/ed25519"
	"github.com/AlexxIT/go2hap/pkg/hap/hkdf"
	"github.com/AlexxIT/go2hap/pkg/hap/tlv8"
)

// PairSetup handles one pair-setup request (M1, M3 or M5) and returns
// the TLV8 body of the response (M2, M4 or M6)
func (s *Server) PairSetup(session *Session, body []byte) []byte {
	var req struct {
		Method        byte   `tlv8:"0"`
		PublicKey     []byte `tlv8:"3"`
		Proof         []byte `tlv8:"4"`
		EncryptedData []byte `tlv8:"5"`
		State         byte   `tlv8:"6"`
	}
	if err := tlv8.Unmarshal(body, &req); err != nil {
		s.Log.Warn().Err(err).Msgf("[hap] pair-setup")
		s.resetSetup(session)
		return pairingError(StateM2, ErrorUnknown)
	}

	switch req.State {
	case StateM1:
		return s.pairSetupM1(session, req.Method)
	case StateM3:
		return s.pairSetupM3(session, req.PublicKey, req.Proof)
	case StateM5:
		return s.pairSetupM5(session, req.EncryptedData)
	}

	s.Log.Warn().Msgf("[hap] pair-setup wrong state: %d", req.State)
	s.resetSetup(session)
	return pairingError(nextState(req.State), ErrorUnknown)
}

func (s *Server) pairSetupM1(session *Session, method byte) []byte {
	s.Log.Debug().Msgf("[hap] pair-setup M1 from %s", session.RemoteAddr())

	if s.IsPaired() {
		return pairingError(StateM2, ErrorUnavailable)
	}

	// only plain pair-setup, no MFi certificate
	if method != MethodPair {
		return pairingError(StateM2, ErrorUnavailable)
	}

	if code, delay := s.limiter.check(setupKey); code != 0 {
		s.Log.Warn().Msgf("[hap] pair-setup limited: %s", code)
		if code == ErrorBackoff {
			return backoffError(StateM2, delay)
		}
		return pairingError(StateM2, code)
	}

	s.mu.Lock()
	if s.setupOwner != nil && s.setupOwner != session {
		s.mu.Unlock()
		return pairingError(StateM2, ErrorBusy)
	}
	s.setupOwner = session
	s.mu.Unlock()

	salt, verifier, err := s.srpVerifier()
	if err != nil {
		s.Log.Error().Err(err).Caller().Send()
		s.resetSetup(session)
		return pairingError(StateM2, ErrorUnknown)
	}

	srpServer, err := s.params.NewServer([]byte(SetupUsername), salt, verifier)
	if err != nil {
		s.Log.Error().Err(err).Caller().Send()
		s.resetSetup(session)
		return pairingError(StateM2, ErrorUnknown)
	}

	session.setupSRP = srpServer
	session.setupKey = nil
	session.setupState = StateM2

	res := struct {
		Salt      []byte `tlv8:"2"`
		PublicKey []byte `tlv8:"3"`
		State     byte   `tlv8:"6"`
	}{
		Salt:      salt,
		PublicKey: srpServer.PublicKey(),
		State:     StateM2,
	}
	return mustMarshal(res)
}

func (s *Server) pairSetupM3(session *Session, publicKey, proof []byte) []byte {
	if session.setupState != StateM2 {
		s.Log.Warn().Msgf("[hap] pair-setup M3 out of order")
		s.resetSetup(session)
		return pairingError(StateM4, ErrorUnknown)
	}

	// important to compute key before verify client
	key, err := session.setupSRP.ComputeKey(publicKey)
	if err != nil || !session.setupSRP.VerifyClientProof(proof) {
		s.Log.Warn().Msgf("[hap] pair-setup wrong setup code from %s", session.RemoteAddr())
		s.limiter.fail(setupKey)
		s.resetSetup(session)
		return pairingError(StateM4, ErrorAuthentication)
	}

	session.setupKey = key
	session.setupState = StateM4

	res := struct {
		Proof []byte `tlv8:"4"`
		State byte   `tlv8:"6"`
	}{
		Proof: session.setupSRP.Proof(),
		State: StateM4,
	}
	return mustMarshal(res)
}

func (s *Server) pairSetupM5(session *Session, encryptedData []byte) []byte {
	if session.setupState != StateM4 {
		s.Log.Warn().Msgf("[hap] pair-setup M5 out of order")
		s.resetSetup(session)
		return pairingError(StateM6, ErrorUnknown)
	}

	sessionKey := session.setupKey

	// the handshake is over after M5 whatever happens
	defer s.resetSetup(session)

	encryptKey, err := hkdf.Sha512(sessionKey, "Pair-Setup-Encrypt-Salt", "Pair-Setup-Encrypt-Info")
	if err != nil {
		return pairingError(StateM6, ErrorUnknown)
	}

	b, err := chacha20poly1305.Decrypt(encryptKey, "PS-Msg05", encryptedData)
	if err != nil {
		s.Log.Warn().Err(err).Msgf("[hap] pair-setup M5")
		s.limiter.fail(setupKey)
		return pairingError(StateM6, ErrorAuthentication)
	}

	var plainM5 struct {
		Identifier string `tlv8:"1"`
		PublicKey  []byte `tlv8:"3"`
		Signature  []byte `tlv8:"10"`
	}
	if err = tlv8.Unmarshal(b, &plainM5); err != nil {
		s.Log.Warn().Err(err).Msgf("[hap] pair-setup M5")
		return pairingError(StateM6, ErrorUnknown)
	}

	pairing := &Pairing{
		ID:         plainM5.Identifier,
		PublicKey:  plainM5.PublicKey,
		Permission: PermissionAdmin,
	}
	if err = pairing.Validate(); err != nil {
		s.Log.Warn().Err(err).Msgf("[hap] pair-setup M5")
		return pairingError(StateM6, ErrorUnknown)
	}

	// verify controller ID and public key
	controllerX, err := hkdf.Sha512(sessionKey, "Pair-Setup-Controller-Sign-Salt", "Pair-Setup-Controller-Sign-Info")
	if err != nil {
		return pairingError(StateM6, ErrorUnknown)
	}

	b = Append(controllerX, plainM5.Identifier, plainM5.PublicKey)
	if !ed25519.ValidateSignature(plainM5.PublicKey, b, plainM5.Signature) {
		s.Log.Warn().Msgf("[hap] pair-setup M5 wrong signature from %s", plainM5.Identifier)
		s.limiter.fail(setupKey)
		return pairingError(StateM6, ErrorAuthentication)
	}

	// sign our ID and public key
	accessoryX, err := hkdf.Sha512(sessionKey, "Pair-Setup-Accessory-Sign-Salt", "Pair-Setup-Accessory-Sign-Info")
	if err != nil {
		return pairingError(StateM6, ErrorUnknown)
	}

	deviceID := s.Store.DeviceID()
	private := s.Store.DevicePrivate()
	public := ed25519.PublicKey(private)

	b = Append(accessoryX, deviceID, public)
	signature, err := ed25519.Signature(private, b)
	if err != nil {
		s.Log.Error().Err(err).Caller().Send()
		return pairingError(StateM6, ErrorUnknown)
	}

	plainM6 := struct {
		Identifier string `tlv8:"1"`
		PublicKey  []byte `tlv8:"3"`
		Signature  []byte `tlv8:"10"`
	}{
		Identifier: deviceID,
		PublicKey:  public,
		Signature:  signature,
	}

	if b, err = chacha20poly1305.Encrypt(encryptKey, "PS-Msg06", mustMarshal(plainM6)); err != nil {
		return pairingError(StateM6, ErrorUnknown)
	}

	s.pairingsMu.Lock()
	err = s.Store.UpsertPairing(pairing)
	s.pairingsMu.Unlock()
	if err != nil {
		s.Log.Error().Err(err).Caller().Send()
		return pairingError(StateM6, ErrorUnknown)
	}

	s.limiter.reset(setupKey)

	s.Log.Info().Msgf("[hap] paired with %s", pairing.ID)

	cipherM6 := struct {
		EncryptedData []byte `tlv8:"5"`
		State         byte   `tlv8:"6"`
	}{
		EncryptedData: b,
		State:         StateM6,
	}
	return mustMarshal(cipherM6)
}

// resetSetup makes the session wait for a new M1 and frees the setup slot
func (s *Server) resetSetup(session *Session) {
	session.setupState = 0
	session.setupSRP = nil
	session.setupKey = nil

	s.mu.Lock()
	if s.setupOwner == session {
		s.setupOwner = nil
	}
	s.mu.Unlock()
}

// nextState answers unknown states with M2
func nextState(state byte) byte {
	if state == 0 || state >= StateM6 {
		return StateM2
	}
	return state + 1
}

func pairingError(state byte, code PairingError) []byte {
	return tlv8.Encode(
		tlv8.Item{Tag: TagState, Value: []byte{state}},
		tlv8.Item{Tag: TagError, Value: []byte{byte(code)}},
	)
}

func backoffError(state byte, delay uint16) []byte {
	return tlv8.Encode(
		tlv8.Item{Tag: TagState, Value: []byte{state}},
		tlv8.Item{Tag: TagError, Value: []byte{byte(ErrorBackoff)}},
		tlv8.Item{Tag: TagRetryDelay, Value: binary.LittleEndian.AppendUint16(nil, delay)},
	)
}

// mustMarshal is only used with static response structs
func mustMarshal(v any) []byte {
	b, err := tlv8.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
