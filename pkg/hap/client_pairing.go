package hap

import (
	"bytes"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/AlexxIT/go2hap/pkg/hap/chacha20poly1305"
	"github.com/AlexxIT/go2hap/pkg/hap/ed25519"
	"github.com/AlexxIT/go2hap/pkg/hap/hkdf"
	"github.com/AlexxIT/go2hap/pkg/hap/setup"
	"github.com/AlexxIT/go2hap/pkg/hap/srp"
	"github.com/AlexxIT/go2hap/pkg/hap/tlv8"
)

// Pair runs pair-setup with the setup code on a new plain connection.
// On success DeviceID and DevicePublic are filled from the accessory.
func (c *Client) Pair(pin string) (err error) {
	if pin = setup.FormatSetupCode(pin); pin == "" {
		return setup.ErrWrongSetupCode
	}

	if err = c.dial(); err != nil {
		return
	}
	defer c.Close()

	// STEP M1. Send HELLO
	plainM1 := struct {
		Method byte `tlv8:"0"`
		State  byte `tlv8:"6"`
	}{
		Method: MethodPair,
		State:  StateM1,
	}
	res, err := c.Post(PathPairSetup, MimeTLV8, tlv8.MarshalReader(plainM1))
	if err != nil {
		return
	}

	// STEP M2. Read Device Salt and session PublicKey
	var plainM2 struct {
		Salt       []byte `tlv8:"2"`
		SessionKey []byte `tlv8:"3"` // server public key, aka session.B
		State      byte   `tlv8:"6"`
		Error      byte   `tlv8:"7"`
		RetryDelay uint16 `tlv8:"8"`
	}
	if err = tlv8.UnmarshalReader(res.Body, &plainM2); err != nil {
		return
	}
	if plainM2.Error != 0 {
		return retryError(plainM2.Error, plainM2.RetryDelay)
	}
	if plainM2.State != StateM2 {
		return newResponseError(plainM1, plainM2)
	}

	// STEP M3. Generate SRP Session using pin
	params, err := srp.NewParams(srp.Group3072, sha512.New)
	if err != nil {
		return
	}

	// username: "Pair-Setup", password: PIN (with dashes)
	session, err := params.NewClient([]byte(SetupUsername), []byte(pin))
	if err != nil {
		return
	}

	sessionShared, err := session.ComputeKey(plainM2.Salt, plainM2.SessionKey)
	if err != nil {
		return
	}

	// STEP M3. Send request
	plainM3 := struct {
		SessionKey []byte `tlv8:"3"`
		Proof      []byte `tlv8:"4"`
		State      byte   `tlv8:"6"`
	}{
		SessionKey: session.PublicKey(), // client public key, aka session.A
		Proof:      session.Proof(),
		State:      StateM3,
	}
	if res, err = c.Post(PathPairSetup, MimeTLV8, tlv8.MarshalReader(plainM3)); err != nil {
		return
	}

	// STEP M4. Read response
	var plainM4 struct {
		Proof []byte `tlv8:"4"` // server proof
		State byte   `tlv8:"6"`
		Error byte   `tlv8:"7"`
	}
	if err = tlv8.UnmarshalReader(res.Body, &plainM4); err != nil {
		return
	}
	if plainM4.Error != 0 {
		return PairingError(plainM4.Error)
	}
	if plainM4.State != StateM4 {
		return newResponseError(plainM3, plainM4)
	}

	// STEP M4. Verify response
	if !session.VerifyServerProof(plainM4.Proof) {
		return ErrWrongProof
	}

	// STEP M5. Generate signature
	localSign, err := hkdf.Sha512(
		sessionShared, "Pair-Setup-Controller-Sign-Salt", "Pair-Setup-Controller-Sign-Info",
	)
	if err != nil {
		return
	}

	b := Append(localSign, c.ClientID, c.ClientPublic())
	signature, err := ed25519.Signature(c.ClientPrivate, b)
	if err != nil {
		return
	}

	// STEP M5. Generate payload
	plainM5 := struct {
		Identifier string `tlv8:"1"`
		PublicKey  []byte `tlv8:"3"`
		Signature  []byte `tlv8:"10"`
	}{
		Identifier: c.ClientID,
		PublicKey:  c.ClientPublic(),
		Signature:  signature,
	}
	if b, err = tlv8.Marshal(plainM5); err != nil {
		return
	}

	// STEP M5. Encrypt payload
	encryptKey, err := hkdf.Sha512(
		sessionShared, "Pair-Setup-Encrypt-Salt", "Pair-Setup-Encrypt-Info",
	)
	if err != nil {
		return
	}

	if b, err = chacha20poly1305.Encrypt(encryptKey, "PS-Msg05", b); err != nil {
		return
	}

	// STEP M5. Send request
	cipherM5 := struct {
		EncryptedData []byte `tlv8:"5"`
		State         byte   `tlv8:"6"`
	}{
		EncryptedData: b,
		State:         StateM5,
	}
	if res, err = c.Post(PathPairSetup, MimeTLV8, tlv8.MarshalReader(cipherM5)); err != nil {
		return
	}

	// STEP M6. Read response
	cipherM6 := struct {
		EncryptedData []byte `tlv8:"5"`
		State         byte   `tlv8:"6"`
		Error         byte   `tlv8:"7"`
	}{}
	if err = tlv8.UnmarshalReader(res.Body, &cipherM6); err != nil {
		return
	}
	if cipherM6.Error != 0 {
		return PairingError(cipherM6.Error)
	}
	if cipherM6.State != StateM6 {
		return newResponseError(plainM5, cipherM6)
	}

	// STEP M6. Decrypt payload
	b, err = chacha20poly1305.Decrypt(encryptKey, "PS-Msg06", cipherM6.EncryptedData)
	if err != nil {
		return
	}

	plainM6 := struct {
		Identifier string `tlv8:"1"`
		PublicKey  []byte `tlv8:"3"`
		Signature  []byte `tlv8:"10"`
	}{}
	if err = tlv8.Unmarshal(b, &plainM6); err != nil {
		return
	}

	// STEP M6. Verify payload
	remoteSign, err := hkdf.Sha512(
		sessionShared, "Pair-Setup-Accessory-Sign-Salt", "Pair-Setup-Accessory-Sign-Info",
	)
	if err != nil {
		return
	}

	b = Append(remoteSign, plainM6.Identifier, plainM6.PublicKey)
	if !ed25519.ValidateSignature(plainM6.PublicKey, b, plainM6.Signature) {
		return ErrWrongSignature
	}

	if c.DeviceID != "" && c.DeviceID != plainM6.Identifier {
		return fmt.Errorf("%w: %s", ErrWrongDevice, plainM6.Identifier)
	}

	c.DeviceID = plainM6.Identifier
	c.DevicePublic = plainM6.PublicKey

	return nil
}

// ListPairings needs an admin secure session
func (c *Client) ListPairings() ([]*Pairing, error) {
	plainM1 := struct {
		Method byte `tlv8:"0"`
		State  byte `tlv8:"6"`
	}{
		Method: MethodListPairings,
		State:  StateM1,
	}
	res, err := c.Post(PathPairings, MimeTLV8, tlv8.MarshalReader(plainM1))
	if err != nil {
		return nil, err
	}

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	entries, err := tlv8.DecodeList(b, tlv8.Separator)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 || !bytes.Equal(entries[0][TagState], []byte{StateM2}) {
		return nil, newResponseError(plainM1, b)
	}
	if code := entries[0][TagError]; len(code) == 1 {
		return nil, PairingError(code[0])
	}

	var pairings []*Pairing
	for _, entry := range entries {
		id, ok := entry[TagIdentifier]
		if !ok {
			continue // state only response without pairings
		}

		pairing := &Pairing{ID: string(id), PublicKey: entry[TagPublicKey]}
		if v := entry[TagPermissions]; len(v) == 1 {
			pairing.Permission = v[0]
		}
		pairings = append(pairings, pairing)
	}

	return pairings, nil
}

func (c *Client) AddPairing(clientID string, clientPublic []byte, permission byte) error {
	plainM1 := struct {
		Method     byte   `tlv8:"0"`
		Identifier string `tlv8:"1"`
		PublicKey  []byte `tlv8:"3"`
		State      byte   `tlv8:"6"`
		Permission byte   `tlv8:"11"`
	}{
		Method:     MethodAddPairing,
		Identifier: clientID,
		PublicKey:  clientPublic,
		State:      StateM1,
		Permission: permission,
	}
	res, err := c.Post(PathPairings, MimeTLV8, tlv8.MarshalReader(plainM1))
	if err != nil {
		return err
	}

	return readStateM2(res.Body, plainM1)
}

func (c *Client) RemovePairing(clientID string) error {
	plainM1 := struct {
		Method     byte   `tlv8:"0"`
		Identifier string `tlv8:"1"`
		State      byte   `tlv8:"6"`
	}{
		Method:     MethodDeletePairing,
		Identifier: clientID,
		State:      StateM1,
	}
	res, err := c.Post(PathPairings, MimeTLV8, tlv8.MarshalReader(plainM1))
	if err != nil {
		return err
	}

	return readStateM2(res.Body, plainM1)
}

func readStateM2(r io.Reader, req any) error {
	var plainM2 struct {
		State byte `tlv8:"6"`
		Error byte `tlv8:"7"`
	}
	if err := tlv8.UnmarshalReader(r, &plainM2); err != nil {
		return err
	}
	if plainM2.Error != 0 {
		return PairingError(plainM2.Error)
	}
	if plainM2.State != StateM2 {
		return newResponseError(req, plainM2)
	}
	return nil
}
