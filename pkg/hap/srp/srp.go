// Package srp implements SRP-6a (RFC 5054) with the HomeKit transcript:
// k = H(N | PAD(g)), u = H(PAD(A) | PAD(B)), K = H(PAD(S)),
// M1 = H(H(N) xor H(g) | H(I) | s | PAD(A) | PAD(B) | K), M2 = H(PAD(A) | M1 | K).
package srp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"hash"
	"math/big"
)

const (
	Group1024 = "rfc5054.1024"
	Group3072 = "rfc5054.3072"

	SecretSize = 32 // private exponents a and b
)

var (
	ErrUnknownGroup     = errors.New("srp: unknown group")
	ErrInvalidPublicKey = errors.New("srp: invalid public key")
)

type Params struct {
	N *big.Int
	G *big.Int

	hash func() hash.Hash
	size int // N length in bytes
	k    *big.Int
}

func NewParams(group string, h func() hash.Hash) (*Params, error) {
	g, ok := groups[group]
	if !ok {
		return nil, ErrUnknownGroup
	}

	n, _ := new(big.Int).SetString(g.n, 16)

	p := &Params{
		N:    n,
		G:    big.NewInt(g.g),
		hash: h,
		size: (n.BitLen() + 7) / 8,
	}
	p.k = new(big.Int).SetBytes(p.digest(p.pad(p.N), p.pad(p.G)))

	return p, nil
}

// ComputeVerifier returns v = g^x mod N, x = H(s | H(I ":" P))
func (p *Params) ComputeVerifier(salt, username, password []byte) []byte {
	x := p.computeX(salt, username, password)
	return p.pad(new(big.Int).Exp(p.G, x, p.N))
}

func (p *Params) computeX(salt, username, password []byte) *big.Int {
	hIP := p.digest(username, []byte(":"), password)
	return new(big.Int).SetBytes(p.digest(salt, hIP))
}

func (p *Params) digest(items ...[]byte) []byte {
	h := p.hash()
	for _, item := range items {
		h.Write(item)
	}
	return h.Sum(nil)
}

func (p *Params) pad(i *big.Int) []byte {
	return i.FillBytes(make([]byte, p.size))
}

// validPublic checks 0 < X < N
func (p *Params) validPublic(x *big.Int) bool {
	return x.Sign() > 0 && x.Cmp(p.N) < 0
}

func (p *Params) clientProof(username, salt, A, B, K []byte) []byte {
	hN := p.digest(p.N.Bytes())
	hG := p.digest(p.G.Bytes())
	for i := range hN {
		hN[i] ^= hG[i]
	}
	return p.digest(hN, p.digest(username), salt, A, B, K)
}

func (p *Params) serverProof(A, M1, K []byte) []byte {
	return p.digest(A, M1, K)
}

func randomSecret() ([]byte, error) {
	b := make([]byte, SecretSize)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

type Server struct {
	params   *Params
	username []byte
	salt     []byte

	v, b *big.Int

	pubA, pubB, key, m1, m2 []byte
}

func (p *Params) NewServer(username, salt, verifier []byte) (*Server, error) {
	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	return p.newServer(username, salt, verifier, secret), nil
}

func (p *Params) newServer(username, salt, verifier, secret []byte) *Server {
	s := &Server{
		params:   p,
		username: username,
		salt:     salt,
		v:        new(big.Int).SetBytes(verifier),
		b:        new(big.Int).SetBytes(secret),
	}

	// B = (k*v + g^b) % N
	B := new(big.Int).Mul(p.k, s.v)
	B.Add(B, new(big.Int).Exp(p.G, s.b, p.N))
	B.Mod(B, p.N)
	s.pubB = p.pad(B)

	return s
}

func (s *Server) Salt() []byte {
	return s.salt
}

// PublicKey returns B
func (s *Server) PublicKey() []byte {
	return s.pubB
}

// ComputeKey takes the client public key A and returns the session key K
func (s *Server) ComputeKey(clientPublic []byte) ([]byte, error) {
	p := s.params

	A := new(big.Int).SetBytes(clientPublic)
	if !p.validPublic(A) {
		return nil, ErrInvalidPublicKey
	}

	s.pubA = p.pad(A)

	u := new(big.Int).SetBytes(p.digest(s.pubA, s.pubB))
	if u.Sign() == 0 {
		return nil, ErrInvalidPublicKey
	}

	// S = (A * v^u) ^ b % N
	S := new(big.Int).Exp(s.v, u, p.N)
	S.Mul(S, A)
	S.Exp(S, s.b, p.N)

	s.key = p.digest(p.pad(S))
	s.m1 = p.clientProof(s.username, s.salt, s.pubA, s.pubB, s.key)
	s.m2 = p.serverProof(s.pubA, s.m1, s.key)

	return s.key, nil
}

func (s *Server) VerifyClientProof(proof []byte) bool {
	return s.m1 != nil && subtle.ConstantTimeCompare(s.m1, proof) == 1
}

// Proof returns M2, valid only after VerifyClientProof
func (s *Server) Proof() []byte {
	return s.m2
}

type Client struct {
	params   *Params
	username []byte
	password []byte

	a *big.Int

	pubA, key, m1, m2 []byte
}

func (p *Params) NewClient(username, password []byte) (*Client, error) {
	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	return p.newClient(username, password, secret), nil
}

func (p *Params) newClient(username, password, secret []byte) *Client {
	c := &Client{
		params:   p,
		username: username,
		password: password,
		a:        new(big.Int).SetBytes(secret),
	}
	c.pubA = p.pad(new(big.Int).Exp(p.G, c.a, p.N))
	return c
}

// PublicKey returns A
func (c *Client) PublicKey() []byte {
	return c.pubA
}

// ComputeKey takes the server salt and public key B and returns the session key K
func (c *Client) ComputeKey(salt, serverPublic []byte) ([]byte, error) {
	p := c.params

	B := new(big.Int).SetBytes(serverPublic)
	if !p.validPublic(B) {
		return nil, ErrInvalidPublicKey
	}

	padB := p.pad(B)

	u := new(big.Int).SetBytes(p.digest(c.pubA, padB))
	if u.Sign() == 0 {
		return nil, ErrInvalidPublicKey
	}

	x := p.computeX(salt, c.username, c.password)

	// S = (B - k * g^x) ^ (a + u * x) % N
	S := new(big.Int).Exp(p.G, x, p.N)
	S.Mul(S, p.k)
	S.Sub(B, S)
	S.Mod(S, p.N)

	e := new(big.Int).Mul(u, x)
	e.Add(e, c.a)

	S.Exp(S, e, p.N)

	c.key = p.digest(p.pad(S))
	c.m1 = p.clientProof(c.username, salt, c.pubA, padB, c.key)
	c.m2 = p.serverProof(c.pubA, c.m1, c.key)

	return c.key, nil
}

// Proof returns M1
func (c *Client) Proof() []byte {
	return c.m1
}

func (c *Client) VerifyServerProof(proof []byte) bool {
	return c.m2 != nil && subtle.ConstantTimeCompare(c.m2, proof) == 1
}

type group struct {
	n string
	g int64
}

var groups = map[string]group{
	Group1024: {
		n: "EEAF0AB9ADB38DD69C33F80AFA8FC5E86072618775FF3C0B9EA2314C" +
			"9C256576D674DF7496EA81D3383B4813D692C6E0E0D5D8E250B98BE4" +
			"8E495C1D6089DAD15DC7D7B46154D6B6CE8EF4AD69B15D4982559B29" +
			"7BCF1885C529F566660E57EC68EDBC3C05726CC02FD4CBF4976EAA9A" +
			"FD5138FE8376435B9FC61D2FC0EB06E3",
		g: 2,
	},
	Group3072: {
		n: "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E08" +
			"8A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B" +
			"302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9" +
			"A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE6" +
			"49286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8" +
			"FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
			"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C" +
			"180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718" +
			"3995497CEA956AE515D2261898FA051015728E5A8AAAC42DAD33170D" +
			"04507A33A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7D" +
			"B3970F85A6E1E4C7ABF5AE8CDB0933D71E8C94E04A25619DCEE3D226" +
			"1AD2EE6BF12FFA06D98A0864D87602733EC86A64521F2B18177B200C" +
			"BBE117577A615D6C770988C0BAD946E208E24FA074E5AB3143DB5BFC" +
			"E0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF",
		g: 5,
	},
}
