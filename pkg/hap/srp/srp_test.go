package srp

import (
	"crypto/sha1"
	"crypto/sha512"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

// RFC 5054, Appendix B
const (
	testSalt = "beb25379d1a8581eb5a727673a2441ee"
	testK    = "7556aa045aef2cdd07abaf0f665c3e818913186f"
	testX    = "94b7555aabe9127cc58ccf4993db6cf84d16c124"
	testV    = "7e273de8696ffc4f4e337d05b4b375beb0dde1569e8fa00a9886d8129bada1f1822223ca1a605b530e379ba4729fdc59f105b4787e5186f5c671085a1447b52a48cf1970b4fb6f8400bbf4cebfbb168152e08ab5ea53d15c1aff87b2b9da6e04e058ad51cc72bfc9033b564e26480d78e955a5e29e7ab245db2be315e2099afb"
	testA    = "60975527035cf2ad1989806f0407210bc81edc04e2762a56afd529ddda2d4393"
	testB    = "e487cb59d31ac550471e81f00f6928e01dda08e974a004f49e61f5d105284d20"
	testPubA = "61d5e490f6f1b79547b0704c436f523dd0e560f0c64115bb72557ec44352e8903211c04692272d8b2d1a5358a2cf1b6e0bfcf99f921530ec8e39356179eae45e42ba92aeaced825171e1e8b9af6d9c03e1327f44be087ef06530e69f66615261eef54073ca11cf5858f0edfdfe15efeab349ef5d76988a3672fac47b0769447b"
	testPubB = "bd0c61512c692c0cb6d041fa01bb152d4916a1e77af46ae105393011baf38964dc46a0670dd125b95a981652236f99d9b681cbf87837ec996c6da04453728610d0c6ddb58b318885d7d82c7f8deb75ce7bd4fbaa37089e6f9c6059f388838e7a00030b331eb76840910440b1b27aaeaeeb4012b7d7665238a8e3fb004b117b58"
	testU    = "ce38b9593487da98554ed47d70a7ae5f462ef019"
	testS    = "b0dc82babcf30674ae450c0287745e7990a3381f63b387aaf271a10d233861e359b48220f7c4693c9ae12b0a6f67809f0876e2d013800d6c41bb59b6d5979b5c00a172b4a2a5903a0bdcaf8a709585eb2afafa8f3499b200210dcc1f10eb33943cd67fc88a2f39a4be5bec4ec0a3212dc346d7e474b29ede8a469ffeca686e5a"

	// HomeKit transcript for the values above
	testKey = "017eefa1cefc5c2e626e21598987f31e0f1b11bb"
	testM1  = "3f3bc67169ea71302599cf1b0f5d408b7b65d347"
	testM2  = "9cab3c575a11de37d3ac1421a9f009236a48eb55"
)

func unhex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func TestRFC5054(t *testing.T) {
	p, err := NewParams(Group1024, sha1.New)
	require.Nil(t, err)

	salt := unhex(testSalt)
	username := []byte("alice")
	password := []byte("password123")

	require.Equal(t, testK, hex.EncodeToString(p.k.Bytes()))
	require.Equal(t, testX, hex.EncodeToString(p.computeX(salt, username, password).Bytes()))

	verifier := p.ComputeVerifier(salt, username, password)
	require.Equal(t, testV, hex.EncodeToString(verifier))

	client := p.newClient(username, password, unhex(testA))
	require.Equal(t, testPubA, hex.EncodeToString(client.PublicKey()))

	server := p.newServer(username, salt, verifier, unhex(testB))
	require.Equal(t, testPubB, hex.EncodeToString(server.PublicKey()))

	u := new(big.Int).SetBytes(p.digest(client.PublicKey(), server.PublicKey()))
	require.Equal(t, testU, hex.EncodeToString(u.Bytes()))

	serverKey, err := server.ComputeKey(client.PublicKey())
	require.Nil(t, err)

	clientKey, err := client.ComputeKey(salt, server.PublicKey())
	require.Nil(t, err)

	// K = H(PAD(S))
	require.Equal(t, p.digest(unhex(testS)), serverKey)
	require.Equal(t, testKey, hex.EncodeToString(serverKey))
	require.Equal(t, serverKey, clientKey)

	require.Equal(t, testM1, hex.EncodeToString(client.Proof()))
	require.True(t, server.VerifyClientProof(client.Proof()))

	require.Equal(t, testM2, hex.EncodeToString(server.Proof()))
	require.True(t, client.VerifyServerProof(server.Proof()))
}

func TestHomeKit(t *testing.T) {
	p, err := NewParams(Group3072, sha512.New)
	require.Nil(t, err)

	username := []byte("Pair-Setup")
	salt := []byte("0123456789abcdef")
	verifier := p.ComputeVerifier(salt, username, []byte("123-45-678"))
	require.Len(t, verifier, 384)

	server, err := p.NewServer(username, salt, verifier)
	require.Nil(t, err)
	require.Len(t, server.PublicKey(), 384)

	client, err := p.NewClient(username, []byte("123-45-678"))
	require.Nil(t, err)

	clientKey, err := client.ComputeKey(server.Salt(), server.PublicKey())
	require.Nil(t, err)

	serverKey, err := server.ComputeKey(client.PublicKey())
	require.Nil(t, err)

	require.Equal(t, clientKey, serverKey)
	require.Len(t, serverKey, sha512.Size)
	require.True(t, server.VerifyClientProof(client.Proof()))
	require.True(t, client.VerifyServerProof(server.Proof()))
}

func TestWrongPassword(t *testing.T) {
	p, err := NewParams(Group3072, sha512.New)
	require.Nil(t, err)

	username := []byte("Pair-Setup")
	salt := []byte("0123456789abcdef")

	server, err := p.NewServer(username, salt, p.ComputeVerifier(salt, username, []byte("123-45-678")))
	require.Nil(t, err)

	client, err := p.NewClient(username, []byte("123-45-679"))
	require.Nil(t, err)

	_, err = client.ComputeKey(salt, server.PublicKey())
	require.Nil(t, err)

	_, err = server.ComputeKey(client.PublicKey())
	require.Nil(t, err)

	require.False(t, server.VerifyClientProof(client.Proof()))
	require.False(t, client.VerifyServerProof(server.Proof()))
}

func TestInvalidPublicKey(t *testing.T) {
	p, err := NewParams(Group1024, sha1.New)
	require.Nil(t, err)

	salt := unhex(testSalt)
	server, err := p.NewServer([]byte("alice"), salt, unhex(testV))
	require.Nil(t, err)

	client, err := p.NewClient([]byte("alice"), []byte("password123"))
	require.Nil(t, err)

	zero := make([]byte, 128)
	N := p.N.Bytes()
	twoN := new(big.Int).Lsh(p.N, 1).Bytes()

	for _, pub := range [][]byte{zero, N, twoN, nil} {
		_, err = server.ComputeKey(pub)
		require.ErrorIs(t, err, ErrInvalidPublicKey)

		_, err = client.ComputeKey(salt, pub)
		require.ErrorIs(t, err, ErrInvalidPublicKey)
	}

	// no key, no proof
	require.False(t, server.VerifyClientProof(nil))
}

func TestUnknownGroup(t *testing.T) {
	_, err := NewParams("rfc5054.2048", sha512.New)
	require.ErrorIs(t, err, ErrUnknownGroup)
}
