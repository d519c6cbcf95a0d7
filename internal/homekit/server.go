package homekit

import (
	"context"
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"sync"

	"github.com/AlexxIT/go2hap/internal/app"
	"github.com/AlexxIT/go2hap/pkg/hap"
	"github.com/AlexxIT/go2hap/pkg/hap/mdns"
	"github.com/AlexxIT/go2hap/pkg/hap/setup"
	"golang.org/x/sync/errgroup"
)

type server struct {
	cfg      Config
	name     string
	deviceID string
	setupID  string

	store *hap.MemoryStore
	hap   *hap.Server // server for HAP connection and encryption
	mdns  *mdns.Advertiser

	closed bool
	mu     sync.Mutex
}

func newServer(cfg Config) (*server, error) {
	seed := cfg.Name
	if seed == "" {
		seed, _ = os.Hostname()
	}

	s := &server{
		cfg:      cfg,
		name:     calcName(cfg.Name, seed),
		deviceID: calcDeviceID(cfg.DeviceID, seed),
		setupID:  cfg.SetupID,
	}

	private := calcDevicePrivate(cfg.DevicePrivate)
	if private == nil {
		private = hap.GenerateKey()
		s.patchConfig("device_private", hex.EncodeToString(private))
	}

	pin := cfg.Pin
	if pin == "" {
		pin = setup.GenerateSetupCode()
		s.patchConfig("pin", pin)
	} else if err := setup.ValidateSetupCode(pin); err != nil {
		return nil, fmt.Errorf("homekit: pin %s: %w", pin, err)
	}

	if s.setupID == "" {
		s.setupID = setup.GenerateSetupID()
		s.patchConfig("setup_id", s.setupID)
	}

	var pairings []*hap.Pairing
	for _, raw := range cfg.Pairings {
		pairing, err := decodePairing(raw)
		if err != nil {
			log.Warn().Err(err).Msgf("[homekit] skip pairing %s", raw)
			continue
		}
		pairings = append(pairings, pairing)
	}

	s.store = hap.NewMemoryStore(s.deviceID, private, setup.FormatSetupCode(pin), pairings...)
	s.store.OnChange = s.onChange

	s.hap = hap.NewServer(s.store)
	s.hap.Log = log

	return s, nil
}

func (s *server) run(ctx context.Context, ln net.Listener) error {
	if !s.cfg.DisableMDNS {
		s.mu.Lock()
		s.mdns = mdns.NewAdvertiser(mdns.Info{
			Name:      s.name,
			DeviceID:  s.deviceID,
			Model:     s.cfg.Model,
			Category:  s.cfg.Category,
			SetupHash: setup.SetupHash(s.setupID, s.deviceID),
			Port:      ln.Addr().(*net.TCPAddr).Port,
		})
		s.updateStatus()
		s.mu.Unlock()
	}

	uri := setup.GenerateSetupURI(s.cfg.Category, s.store.SetupCode(), s.setupID)
	log.Info().Str("uri", uri).Str("id", s.deviceID).Msgf("[homekit] %s listen=%s", s.name, ln.Addr())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.hap.Serve(ln)
	})

	g.Go(func() error {
		<-ctx.Done()

		s.mu.Lock()
		s.closed = true
		if s.mdns != nil {
			_ = s.mdns.Close()
		}
		s.mu.Unlock()

		return s.hap.Close()
	})

	return g.Wait()
}

// onChange persists the pairings and updates the mDNS status flag.
// Concurrent calls are serialized and always write the latest list.
func (s *server) onChange(_ []*hap.Pairing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pairings := s.store.ListPairings()

	s.patchConfig("pairings", encodePairings(pairings))

	if !s.closed {
		s.updateStatus()
	}
}

func (s *server) updateStatus() {
	if s.mdns == nil {
		return
	}
	// true status is important, or device may be offline in Apple Home
	if err := s.mdns.Update(s.hap.IsPaired()); err != nil {
		log.Warn().Err(err).Msg("[homekit] mdns")
	}
}

func (s *server) patchConfig(key string, value any) {
	if err := app.PatchConfig(key, value, "homekit"); err != nil {
		log.Error().Err(err).Msgf("[homekit] can't save %s", key)
	}
}

func encodePairings(pairings []*hap.Pairing) []string {
	items := make([]string, 0, len(pairings))
	for _, pairing := range pairings {
		query := url.Values{
			"client_id":     []string{pairing.ID},
			"client_public": []string{hex.EncodeToString(pairing.PublicKey)},
			"permissions":   []string{string('0' + pairing.Permission)},
		}
		items = append(items, query.Encode())
	}
	return items
}

func decodePairing(raw string) (*hap.Pairing, error) {
	query, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}

	pairing := &hap.Pairing{
		ID:        query.Get("client_id"),
		PublicKey: hap.DecodeKey(query.Get("client_public")),
	}

	switch query.Get("permissions") {
	case "0", "":
		pairing.Permission = hap.PermissionUser
	case "1":
		pairing.Permission = hap.PermissionAdmin
	default:
		return nil, errors.New("homekit: wrong permissions")
	}

	if err = pairing.Validate(); err != nil {
		return nil, err
	}

	return pairing, nil
}

func calcName(name, seed string) string {
	if name != "" {
		return name
	}
	b := sha512.Sum512([]byte(seed))
	return fmt.Sprintf("go2hap-%02X%02X", b[0], b[2])
}

func calcDeviceID(deviceID, seed string) string {
	if deviceID != "" {
		// 1. Return device_id in upper case (ex. AA:BB:CC:DD:EE:FF)
		if mac, err := net.ParseMAC(deviceID); err == nil && len(mac) == 6 {
			return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
		}
		// 2. Use device_id as seed if not zero
		seed = deviceID
	}
	b := sha512.Sum512([]byte(seed))
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[32], b[34], b[36], b[38], b[40], b[42])
}

// calcDevicePrivate returns nil when the key must be generated
func calcDevicePrivate(private string) []byte {
	if private == "" {
		return nil
	}
	// 1. Decode private from HEX string
	if b, _ := hex.DecodeString(private); len(b) == ed25519.PrivateKeySize {
		return b
	}
	// 2. Use private as seed
	b := sha512.Sum512([]byte(private))
	return ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
}
