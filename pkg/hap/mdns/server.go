package mdns

import (
	"net"
	"strconv"
	"sync"

	"github.com/hashicorp/mdns"
)

const (
	ServiceHAP     = "_hap._tcp"
	HostHeaderTail = "._hap._tcp.local"
)

// Info is the accessory description for the _hap._tcp TXT record
type Info struct {
	Name         string
	DeviceID     string
	Model        string
	Category     string
	SetupHash    string
	ConfigNumber int
	Port         int
	IPs          []net.IP
}

// Advertiser announces the accessory and keeps the status flag in sync
// with the pairing state
type Advertiser struct {
	info   Info
	server *mdns.Server
	mu     sync.Mutex
}

func NewAdvertiser(info Info) *Advertiser {
	if info.ConfigNumber == 0 {
		info.ConfigNumber = 1
	}
	return &Advertiser{info: info}
}

func (a *Advertiser) TXT(paired bool) []string {
	sf := "1"
	if paired {
		sf = "0"
	}

	txt := []string{
		"c#=" + strconv.Itoa(a.info.ConfigNumber),
		"ff=0",
		"id=" + a.info.DeviceID,
		"md=" + a.info.Model,
		"pv=1.1",
		"s#=1",
		"sf=" + sf,
		"ci=" + a.info.Category,
	}
	if a.info.SetupHash != "" {
		txt = append(txt, "sh="+a.info.SetupHash)
	}
	return txt
}

// Update restarts the responder with the new status flag
func (a *Advertiser) Update(paired bool) (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		_ = a.server.Shutdown()
	}

	a.server, err = NewServer(a.info.Name, a.info.Port, a.info.IPs, a.TXT(paired))
	return
}

func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown()
	a.server = nil
	return err
}

func NewServer(name string, port int, ips []net.IP, txt []string) (*mdns.Server, error) {
	if len(ips) == 0 || ips[0] == nil {
		ips = LocalIPs()
	}

	// important to set hostName manually with any value and `.local.` tail
	// important to set ips manually
	service, err := mdns.NewMDNSService(
		name, ServiceHAP, "", name+".local.", port, ips, txt,
	)
	if err != nil {
		return nil, err
	}

	return mdns.NewServer(&mdns.Config{Zone: service})
}

func LocalIPs() []net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue // interface down
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue // loopback interface
		}

		var addrs []net.Addr
		if addrs, err = iface.Addrs(); err != nil {
			continue
		}
		for _, addr := range addrs {
			switch addr := addr.(type) {
			case *net.IPNet:
				ips = append(ips, addr.IP)
			case *net.IPAddr:
				ips = append(ips, addr.IP)
			}
		}
	}
	return ips
}
