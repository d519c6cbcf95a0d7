package homekit

import (
	"fmt"
	"strings"

	"github.com/AlexxIT/go2hap/pkg/hap"
	"github.com/AlexxIT/go2hap/pkg/hap/mdns"
)

type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Addr   string `json:"addr"`
	Model  string `json:"model"`
	Paired bool   `json:"paired"`
}

// Discover returns HomeKit accessories from the local network
func Discover() []*Device {
	var devices []*Device

	for entry := range mdns.GetAll() {
		device := &Device{
			Name: strings.TrimSuffix(entry.Name, mdns.HostHeaderTail+"."),
		}
		if entry.AddrV4 != nil {
			device.Addr = fmt.Sprintf("%s:%d", entry.AddrV4, entry.Port)
		}
		for _, field := range entry.InfoFields {
			k, v, _ := strings.Cut(field, "=")
			switch k {
			case "id":
				device.ID = v
			case "md":
				device.Model = v
			case "sf":
				device.Paired = v == hap.StatusPaired
			}
		}
		devices = append(devices, device)
	}

	return devices
}

// Pair runs pair-setup with the accessory and returns the homekit:// URL
// with the keys of the new controller. Empty host is resolved with mDNS.
func Pair(rawURL, pin string) (string, error) {
	client, err := hap.NewClient(rawURL)
	if err != nil {
		return "", err
	}

	if err = client.Pair(pin); err != nil {
		return "", err
	}

	log.Info().Msgf("[homekit] paired with %s as %s", client.DeviceID, client.ClientID)

	return client.URL(), nil
}

// Unpair removes the controller of the homekit:// URL from the accessory
func Unpair(rawURL string) error {
	client, err := hap.NewClient(rawURL)
	if err != nil {
		return err
	}

	if err = client.Dial(); err != nil {
		return err
	}
	defer client.Close()

	return client.RemovePairing(client.ClientID)
}

// Pairings returns the controllers of the accessory, needs an admin URL
func Pairings(rawURL string) ([]*hap.Pairing, error) {
	client, err := hap.NewClient(rawURL)
	if err != nil {
		return nil, err
	}

	if err = client.Dial(); err != nil {
		return nil, err
	}
	defer client.Close()

	return client.ListPairings()
}
