package hap

import (
	"bufio"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/AlexxIT/go2hap/pkg/hap/secure"
	"github.com/AlexxIT/go2hap/pkg/hap/setup"
	"github.com/AlexxIT/go2hap/pkg/hap/srp"
	"github.com/rs/zerolog"
)

// HandlerFunc serves requests of verified sessions, except /pairings
type HandlerFunc func(session *Session, req *http.Request) (*http.Response, error)

type Server struct {
	Store Store

	// Handler can be nil, then all other paths return 404
	Handler HandlerFunc

	Log zerolog.Logger

	params  *srp.Params
	limiter *limiter

	// pairingsMu makes add, remove with cascade and the pair-verify lookup
	// atomic to each other
	pairingsMu sync.Mutex

	sessions map[net.Conn]*Session
	// setupOwner is the only session allowed to run pair-setup
	setupOwner *Session

	// cached SRP verifier for the current setup code
	setupCode     string
	setupSalt     []byte
	setupVerifier []byte

	listener net.Listener
	closed   bool

	mu sync.Mutex
}

func NewServer(store Store) *Server {
	params, err := srp.NewParams(srp.Group3072, sha512.New)
	if err != nil {
		panic(err)
	}

	return &Server{
		Store:    store,
		Log:      zerolog.Nop(),
		params:   params,
		limiter:  newLimiter(),
		sessions: map[net.Conn]*Session{},
	}
}

// Serve accepts connections until the listener or the server is closed.
// It returns after all connections are finished.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ln.Close()
	}
	s.listener = ln
	s.mu.Unlock()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ServeConn(conn); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.Log.Debug().Err(err).Msgf("[hap] connection %s", conn.RemoteAddr())
			}
		}()
	}
}

// Close stops the listener and drops all sessions
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	for conn := range s.sessions {
		_ = conn.Close()
	}

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ServeConn reads HTTP requests from one connection until it is closed.
// After a successful pair-verify the connection is switched to the
// encrypted session.
func (s *Server) ServeConn(conn net.Conn) error {
	session, err := s.addSession(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}

	defer s.removeSession(conn)
	defer conn.Close()

	s.Log.Trace().Msgf("[hap] new connection %s", conn.RemoteAddr())

	rd := bufio.NewReaderSize(conn, 16*1024)
	wr := bufio.NewWriterSize(conn, 16*1024)

	for {
		req, err := http.ReadRequest(rd)
		if err != nil {
			return err
		}

		res, err := s.handleRequest(session, req)
		if err != nil {
			return err
		}

		if err = res.Write(wr); err != nil {
			return err
		}
		if err = wr.Flush(); err != nil {
			return err
		}

		if res.Close {
			return nil
		}

		// response to the caller is already written
		if ids := session.takeRemoved(); ids != nil {
			s.closeSessions(ids)
		}

		if shared := session.takeUpgrade(); shared != nil {
			sconn, err := secure.Server(conn, shared)
			if err != nil {
				return err
			}

			session.setSecure(sconn, shared)

			// new reader and writer for the encrypted conn
			rd = bufio.NewReaderSize(sconn, 16*1024)
			wr = bufio.NewWriterSize(sconn, 16*1024)

			s.Log.Debug().Msgf("[hap] secure session %s for %s", conn.RemoteAddr(), session.ClientID())
		}
	}
}

func (s *Server) handleRequest(session *Session, req *http.Request) (*http.Response, error) {
	s.Log.Trace().Msgf("[hap] request %s %s", req.Method, req.URL.Path)

	switch req.URL.Path {
	case PathPairSetup, PathPairVerify:
		if session.IsSecure() {
			return NewResponse(http.StatusBadRequest, "", nil), nil
		}

		body, err := readBody(req)
		if err != nil {
			s.Log.Warn().Err(err).Msgf("[hap] request %s", req.URL.Path)
			return newBadRequest(), nil
		}

		if req.URL.Path == PathPairSetup {
			return newTLV8Response(s.PairSetup(session, body)), nil
		}

		res, shared := s.PairVerify(session, body)
		if shared != nil {
			session.mu.Lock()
			session.upgrade = shared
			session.mu.Unlock()
		}
		return newTLV8Response(res), nil

	case PathPairings:
		if !session.IsSecure() {
			return newAuthorizationRequired(), nil
		}

		body, err := readBody(req)
		if err != nil {
			s.Log.Warn().Err(err).Msgf("[hap] request %s", req.URL.Path)
			return newBadRequest(), nil
		}

		return newTLV8Response(s.Pairings(session, body)), nil
	}

	if !session.IsSecure() {
		return newAuthorizationRequired(), nil
	}

	if s.Handler != nil {
		return s.Handler(session, req)
	}

	return NewResponse(http.StatusNotFound, "", nil), nil
}

func (s *Server) addSession(conn net.Conn) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, net.ErrClosed
	}

	session := &Session{conn: conn}
	s.sessions[conn] = session
	return session, nil
}

func (s *Server) removeSession(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.sessions[conn]
	delete(s.sessions, conn)

	if session != nil && s.setupOwner == session {
		s.setupOwner = nil
	}

	s.Log.Trace().Msgf("[hap] close connection %s", conn.RemoteAddr())
}

// closeSessions drops every verified session of the removed controllers
func (s *Server) closeSessions(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn, session := range s.sessions {
		id := session.ClientID()
		if id == "" {
			continue
		}
		for _, removed := range ids {
			if id == removed {
				s.Log.Debug().Msgf("[hap] close session of removed pairing %s", id)
				_ = conn.Close()
				break
			}
		}
	}
}

// SessionCount returns the number of open connections
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// IsPaired returns true if the accessory has at least one pairing
func (s *Server) IsPaired() bool {
	return len(s.Store.ListPairings()) > 0
}

// srpVerifier returns the salt and verifier for the current setup code
func (s *Server) srpVerifier() (salt, verifier []byte, err error) {
	code := setup.FormatSetupCode(s.Store.SetupCode())
	if code == "" {
		return nil, nil, errors.New("hap: wrong setup code format")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setupCode != code {
		salt = make([]byte, 16)
		if _, err = rand.Read(salt); err != nil {
			return
		}

		s.setupCode = code
		s.setupSalt = salt
		s.setupVerifier = s.params.ComputeVerifier(salt, []byte(SetupUsername), []byte(code))
	}

	return s.setupSalt, s.setupVerifier, nil
}

// Session is the state of one controller connection
type Session struct {
	conn      net.Conn
	secure    *secure.Conn
	sharedKey []byte

	// pair-setup
	setupState byte
	setupSRP   *srp.Server
	setupKey   []byte // SRP session key K

	// pair-verify
	verifyState      byte
	verifyPublic     []byte // accessory ephemeral
	verifyRemote     []byte // controller ephemeral
	verifyShared     []byte
	verifyEncryptKey []byte

	clientID string
	upgrade  []byte
	removed  []string

	mu sync.Mutex
}

func (s *Session) Conn() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.secure != nil {
		return s.secure
	}
	return s.conn
}

func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// ClientID of the verified controller, empty before pair-verify
func (s *Session) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

func (s *Session) IsSecure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secure != nil
}

// Close drops the connection, the server loop removes the session
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) setSecure(conn *secure.Conn, sharedKey []byte) {
	s.mu.Lock()
	s.secure = conn
	s.sharedKey = sharedKey
	s.mu.Unlock()
}

func (s *Session) takeUpgrade() (shared []byte) {
	s.mu.Lock()
	shared, s.upgrade = s.upgrade, nil
	s.mu.Unlock()
	return
}

func (s *Session) takeRemoved() (ids []string) {
	s.mu.Lock()
	ids, s.removed = s.removed, nil
	s.mu.Unlock()
	return
}
