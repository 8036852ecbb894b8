package netlink

import (
	vishnetlink "github.com/vishvananda/netlink"
)

// LinkInfo is the subset of a network link's attributes udevd reports when
// enumerating the link table at startup, before any hotplug event has been
// seen for it.
type LinkInfo struct {
	Name         string
	Index        int
	HardwareAddr string
	OperState    string
}

// EnumerateLinks lists every network link visible in the current network
// namespace via NETLINK_ROUTE, used by udevd to seed its view of devices
// that existed before it started listening for uevents.
func EnumerateLinks() ([]LinkInfo, error) {
	links, err := vishnetlink.LinkList()
	if err != nil {
		return nil, err
	}

	out := make([]LinkInfo, 0, len(links))
	for _, l := range links {
		attrs := l.Attrs()
		out = append(out, LinkInfo{
			Name:         attrs.Name,
			Index:        attrs.Index,
			HardwareAddr: attrs.HardwareAddr.String(),
			OperState:    attrs.OperState.String(),
		})
	}
	return out, nil
}
