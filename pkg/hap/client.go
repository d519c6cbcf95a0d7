package hap

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/AlexxIT/go2hap/pkg/hap/chacha20poly1305"
	"github.com/AlexxIT/go2hap/pkg/hap/curve25519"
	"github.com/AlexxIT/go2hap/pkg/hap/ed25519"
	"github.com/AlexxIT/go2hap/pkg/hap/hkdf"
	"github.com/AlexxIT/go2hap/pkg/hap/mdns"
	"github.com/AlexxIT/go2hap/pkg/hap/secure"
	"github.com/AlexxIT/go2hap/pkg/hap/tlv8"
)

const (
	ConnDialTimeout = time.Second * 3
	ConnDeadline    = time.Second * 3
)

// Client for HomeKit accessory (aka. Controller). DevicePublic can be null.
type Client struct {
	DeviceAddress string // including port
	DeviceID      string // aka. Accessory
	DevicePublic  []byte
	ClientID      string // aka. Controller
	ClientPrivate []byte

	conn      net.Conn
	reader    *bufio.Reader
	sharedKey []byte
}

func NewClient(rawURL string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	query := u.Query()
	c := &Client{
		DeviceAddress: u.Host,
		DeviceID:      query.Get("device_id"),
		DevicePublic:  DecodeKey(query.Get("device_public")),
		ClientID:      query.Get("client_id"),
		ClientPrivate: DecodeKey(query.Get("client_private")),
	}

	if c.ClientID == "" {
		c.ClientID = GenerateUUID()
	}
	if c.ClientPrivate == nil {
		c.ClientPrivate = GenerateKey()
	}

	return c, nil
}

func (c *Client) ClientPublic() []byte {
	return ed25519.PublicKey(c.ClientPrivate)
}

func (c *Client) URL() string {
	return fmt.Sprintf(
		"homekit://%s?device_id=%s&device_public=%x&client_id=%s&client_private=%x",
		c.DeviceAddress, c.DeviceID, c.DevicePublic, c.ClientID, c.ClientPrivate,
	)
}

func (c *Client) dial() (err error) {
	if c.DeviceAddress == "" {
		if c.DeviceAddress = mdns.GetAddress(c.DeviceID); c.DeviceAddress == "" {
			return errors.New("hap: can't find device: " + c.DeviceID)
		}
	}

	if c.conn, err = net.DialTimeout("tcp", c.DeviceAddress, ConnDialTimeout); err != nil {
		return
	}

	c.reader = bufio.NewReader(c.conn)
	return
}

// Dial opens a connection and runs pair-verify. All following requests
// are encrypted.
func (c *Client) Dial() (err error) {
	if err = c.dial(); err != nil {
		return
	}

	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	// STEP M1: send our session public to device
	sessionPublic, sessionPrivate := curve25519.GenerateKeyPair()

	plainM1 := struct {
		PublicKey []byte `tlv8:"3"`
		State     byte   `tlv8:"6"`
	}{
		PublicKey: sessionPublic,
		State:     StateM1,
	}
	res, err := c.Post(PathPairVerify, MimeTLV8, tlv8.MarshalReader(plainM1))
	if err != nil {
		return
	}

	// STEP M2: unpack deviceID from response
	var cipherM2 struct {
		PublicKey     []byte `tlv8:"3"`
		EncryptedData []byte `tlv8:"5"`
		State         byte   `tlv8:"6"`
		Error         byte   `tlv8:"7"`
	}
	if err = tlv8.UnmarshalReader(res.Body, &cipherM2); err != nil {
		return
	}
	if cipherM2.Error != 0 {
		return PairingError(cipherM2.Error)
	}
	if cipherM2.State != StateM2 {
		return newResponseError(plainM1, cipherM2)
	}

	// 1. generate session shared key
	sessionShared, err := curve25519.SharedSecret(sessionPrivate, cipherM2.PublicKey)
	if err != nil {
		return
	}

	sessionKey, err := hkdf.Sha512(
		sessionShared, "Pair-Verify-Encrypt-Salt", "Pair-Verify-Encrypt-Info",
	)
	if err != nil {
		return
	}

	// 2. decrypt M2 response with session key
	b, err := chacha20poly1305.Decrypt(sessionKey, "PV-Msg02", cipherM2.EncryptedData)
	if err != nil {
		return
	}

	// 3. unpack payload from TLV8
	var plainM2 struct {
		Identifier string `tlv8:"1"`
		Signature  []byte `tlv8:"10"`
	}
	if err = tlv8.Unmarshal(b, &plainM2); err != nil {
		return
	}

	if c.DeviceID != "" && c.DeviceID != plainM2.Identifier {
		return fmt.Errorf("%w: %s", ErrWrongDevice, plainM2.Identifier)
	}

	// 4. verify signature for M2 response with device public
	// device session + device id + our session
	if c.DevicePublic != nil {
		b = Append(cipherM2.PublicKey, plainM2.Identifier, sessionPublic)
		if !ed25519.ValidateSignature(c.DevicePublic, b, plainM2.Signature) {
			return ErrWrongSignature
		}
	}

	// STEP M3: send our clientID to device
	// 1. generate signature with our private key
	// (our session + our ID + device session)
	b = Append(sessionPublic, c.ClientID, cipherM2.PublicKey)
	if b, err = ed25519.Signature(c.ClientPrivate, b); err != nil {
		return
	}

	// 2. generate payload
	plainM3 := struct {
		Identifier string `tlv8:"1"`
		Signature  []byte `tlv8:"10"`
	}{
		Identifier: c.ClientID,
		Signature:  b,
	}
	if b, err = tlv8.Marshal(plainM3); err != nil {
		return
	}

	// 3. encrypt payload with session key
	if b, err = chacha20poly1305.Encrypt(sessionKey, "PV-Msg03", b); err != nil {
		return
	}

	// 4. generate request
	cipherM3 := struct {
		EncryptedData []byte `tlv8:"5"`
		State         byte   `tlv8:"6"`
	}{
		State:         StateM3,
		EncryptedData: b,
	}
	if res, err = c.Post(PathPairVerify, MimeTLV8, tlv8.MarshalReader(cipherM3)); err != nil {
		return
	}

	// STEP M4. Read response
	var plainM4 struct {
		State      byte   `tlv8:"6"`
		Error      byte   `tlv8:"7"`
		RetryDelay uint16 `tlv8:"8"`
	}
	if err = tlv8.UnmarshalReader(res.Body, &plainM4); err != nil {
		return
	}
	if plainM4.Error != 0 {
		return retryError(plainM4.Error, plainM4.RetryDelay)
	}
	if plainM4.State != StateM4 {
		return newResponseError(cipherM3, plainM4)
	}

	// like tls.Client wrapper over net.Conn
	sconn, err := secure.Client(c.conn, sessionShared)
	if err != nil {
		return
	}

	c.conn = sconn
	c.sharedKey = sessionShared
	// new reader for new conn
	c.reader = bufio.NewReaderSize(c.conn, 32*1024) // 32K like default request body

	return
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close()
}

func (c *Client) LocalAddr() string {
	return c.conn.LocalAddr().String()
}

func retryError(code byte, delay uint16) error {
	if PairingError(code) == ErrorBackoff {
		return fmt.Errorf("%w, retry delay %ds", ErrorBackoff, delay)
	}
	return PairingError(code)
}
