// Package secure upgrades a verified HAP connection to the encrypted session:
// plaintext is cut into frames of up to 1024 bytes, each sealed with
// ChaCha20-Poly1305 under a per direction counter nonce.
package secure

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/AlexxIT/go2hap/pkg/hap/chacha20poly1305"
	"github.com/AlexxIT/go2hap/pkg/hap/hkdf"
)

const (
	// PacketSizeMax is the max length of plaintext in one frame
	PacketSizeMax = 0x400

	LengthSize = 2
	Overhead   = chacha20poly1305.Overhead

	FrameSizeMax = LengthSize + PacketSizeMax + Overhead
)

var (
	ErrAuthentication   = errors.New("secure: message authentication failed")
	ErrCounterExhausted = errors.New("secure: nonce counter exhausted")
	ErrFrameSize        = errors.New("secure: frame too big")
)

// DeriveKeys returns the accessory to controller (read) and
// controller to accessory (write) keys from the Pair-Verify shared secret
func DeriveKeys(sharedKey []byte) (readKey, writeKey []byte, err error) {
	if readKey, err = hkdf.Sha512(sharedKey, "Control-Salt", "Control-Read-Encryption-Key"); err != nil {
		return
	}
	writeKey, err = hkdf.Sha512(sharedKey, "Control-Salt", "Control-Write-Encryption-Key")
	return
}

type Conn struct {
	conn net.Conn
	rd   *bufio.Reader
	rb   []byte // decrypted but not yet read

	encryptKey []byte
	decryptKey []byte
	encryptCnt uint64
	decryptCnt uint64

	readMu  sync.Mutex
	writeMu sync.Mutex

	readErr  error
	writeErr error
}

// Server wraps an accessory side connection
func Server(conn net.Conn, sharedKey []byte) (*Conn, error) {
	readKey, writeKey, err := DeriveKeys(sharedKey)
	if err != nil {
		return nil, err
	}
	return newConn(conn, readKey, writeKey), nil
}

// Client wraps a controller side connection
func Client(conn net.Conn, sharedKey []byte) (*Conn, error) {
	readKey, writeKey, err := DeriveKeys(sharedKey)
	if err != nil {
		return nil, err
	}
	return newConn(conn, writeKey, readKey), nil
}

func newConn(conn net.Conn, encryptKey, decryptKey []byte) *Conn {
	return &Conn{
		conn:       conn,
		rd:         bufio.NewReaderSize(conn, FrameSizeMax),
		encryptKey: encryptKey,
		decryptKey: decryptKey,
	}
}

// AppendFrames seals plaintext into frames and appends them to dst.
// The counter is incremented once per frame.
func AppendFrames(dst, key []byte, counter *uint64, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	length := make([]byte, LengthSize)

	for {
		size := len(plaintext)
		if size > PacketSizeMax {
			size = PacketSizeMax
		}

		if *counter == math.MaxUint64 {
			return nil, ErrCounterExhausted
		}
		binary.LittleEndian.PutUint64(nonce, *counter)
		*counter++

		binary.LittleEndian.PutUint16(length, uint16(size))
		dst = append(dst, length...)

		var err error
		dst, err = chacha20poly1305.EncryptAndSeal(key, dst, nonce, plaintext[:size], length)
		if err != nil {
			return nil, err
		}

		plaintext = plaintext[size:]
		if len(plaintext) == 0 {
			return dst, nil
		}
	}
}

// OpenFrame decrypts one whole frame (length, ciphertext and tag).
// The counter is incremented only on success.
func OpenFrame(key []byte, counter *uint64, frame []byte) ([]byte, error) {
	if len(frame) < LengthSize+Overhead {
		return nil, io.ErrUnexpectedEOF
	}

	size := int(binary.LittleEndian.Uint16(frame))
	if size > PacketSizeMax {
		return nil, ErrFrameSize
	}
	if len(frame) != LengthSize+size+Overhead {
		return nil, io.ErrUnexpectedEOF
	}

	return openFrame(key, counter, frame[:LengthSize], frame[LengthSize:], nil)
}

func openFrame(key []byte, counter *uint64, length, ciphertext, dst []byte) ([]byte, error) {
	if *counter == math.MaxUint64 {
		return nil, ErrCounterExhausted
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.LittleEndian.PutUint64(nonce, *counter)

	plaintext, err := chacha20poly1305.DecryptAndVerify(key, dst, nonce, ciphertext, length)
	if err != nil {
		return nil, ErrAuthentication
	}

	*counter++
	return plaintext, nil
}

func (c *Conn) Read(b []byte) (n int, err error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.readErr != nil {
		return 0, c.readErr
	}

	// something in reading buffer
	if len(c.rb) > 0 {
		n = copy(b, c.rb)
		c.rb = c.rb[n:]
		return
	}

	length := make([]byte, LengthSize)
	if _, err = io.ReadFull(c.rd, length); err != nil {
		return
	}

	size := int(binary.LittleEndian.Uint16(length))
	if size > PacketSizeMax {
		return 0, c.fail(ErrFrameSize)
	}

	ciphertext := make([]byte, size+Overhead)
	if _, err = io.ReadFull(c.rd, ciphertext); err != nil {
		return
	}

	plaintext, err := openFrame(c.decryptKey, &c.decryptCnt, length, ciphertext, ciphertext[:0])
	if err != nil {
		// no recovery after a bad frame
		return 0, c.fail(err)
	}

	n = copy(b, plaintext)
	c.rb = plaintext[n:]
	return
}

// fail closes the connection and makes the error sticky for readers
func (c *Conn) fail(err error) error {
	c.readErr = err
	_ = c.conn.Close()
	return err
}

func (c *Conn) Write(b []byte) (n int, err error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeErr != nil {
		return 0, c.writeErr
	}
	if len(b) == 0 {
		return 0, nil
	}

	buf := make([]byte, 0, len(b)+(len(b)/PacketSizeMax+1)*(LengthSize+Overhead))
	if buf, err = AppendFrames(buf, c.encryptKey, &c.encryptCnt, b); err != nil {
		c.writeErr = err
		_ = c.conn.Close()
		return 0, err
	}

	if _, err = c.conn.Write(buf); err != nil {
		return 0, err
	}

	return len(b), nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}
