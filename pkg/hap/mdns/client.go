package mdns

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const QueryTimeout = time.Second

func GetAll() chan *mdns.ServiceEntry {
	entries := make(chan *mdns.ServiceEntry)
	params := &mdns.QueryParam{
		Service: ServiceHAP, Entries: entries, Timeout: QueryTimeout, DisableIPv6: true,
	}

	go func() {
		_ = mdns.Query(params)
		close(entries)
	}()

	return entries
}

// GetEntry returns the accessory with the device ID in TXT record
func GetEntry(deviceID string) (found *mdns.ServiceEntry) {
	for entry := range GetAll() {
		// read all entries, so the query goroutine can finish
		if found == nil && HasDeviceID(entry.InfoFields, deviceID) {
			found = entry
		}
	}
	return
}

func GetAddress(deviceID string) string {
	if entry := GetEntry(deviceID); entry != nil && entry.AddrV4 != nil {
		return fmt.Sprintf("%s:%d", entry.AddrV4.String(), entry.Port)
	}
	return ""
}

func HasDeviceID(txt []string, deviceID string) bool {
	for _, s := range txt {
		if k, v, ok := strings.Cut(s, "="); ok && k == "id" {
			return strings.EqualFold(v, deviceID)
		}
	}
	return false
}
