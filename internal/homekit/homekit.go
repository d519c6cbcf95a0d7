package homekit

import (
	"context"
	"net"

	"github.com/AlexxIT/go2hap/internal/app"
	"github.com/rs/zerolog"
)

type Config struct {
	Listen        string   `yaml:"listen"`
	Name          string   `yaml:"name"`
	Model         string   `yaml:"model"`
	Category      string   `yaml:"category"`
	DeviceID      string   `yaml:"device_id"`
	DevicePrivate string   `yaml:"device_private"`
	Pin           string   `yaml:"pin"`
	SetupID       string   `yaml:"setup_id"`
	Pairings      []string `yaml:"pairings"`
	DisableMDNS   bool     `yaml:"disable_mdns"`
}

func Init() {
	var cfg struct {
		Mod Config `yaml:"homekit"`
	}

	cfg.Mod = Config{
		Listen:   ":51826",
		Model:    "go2hap",
		Category: "1", // Other
	}

	app.LoadConfig(&cfg)

	log = app.GetLogger("homekit")

	// empty listen disables the accessory
	if cfg.Mod.Listen == "" {
		return
	}

	var err error
	if srv, err = newServer(cfg.Mod); err != nil {
		log.Error().Err(err).Msg("[homekit] init")
	}
}

var log = zerolog.Nop()

var srv *server

// Run serves the accessory until the context is canceled
func Run(ctx context.Context) error {
	if srv == nil {
		return nil
	}

	ln, err := net.Listen("tcp", srv.cfg.Listen)
	if err != nil {
		return err
	}

	return srv.run(ctx, ln)
}
