package nmap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CZERTAINLY/runway/internal/model"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

// Components maps the scanned hosts to CycloneDX components. Every host
// depends on the components of its ports, a port depends on the SSH host
// keys it presented. A key seen on several ports is listed once.
func Components(res model.ScanResult) ([]cdx.Component, []cdx.Dependency) {
	var components []cdx.Component
	var dependencies []cdx.Dependency
	seen := make(map[string]struct{})
	for _, host := range res.Hosts {
		compos, deps := hostComponents(host, seen)
		components = append(components, compos...)
		dependencies = append(dependencies, deps...)
	}
	return components, dependencies
}

func hostComponents(host model.Host, seen map[string]struct{}) ([]cdx.Component, []cdx.Dependency) {
	primaryAddr, hostCompo := hostToComponent(host)
	portCompos := make([]cdx.Component, 0, len(host.Ports))
	portRefs := make([]string, 0, len(host.Ports))
	var portDeps, keyDeps []cdx.Dependency
	var keyCompos []cdx.Component
	for _, port := range host.Ports {
		compo := portToComponent(primaryAddr, port)
		portCompos = append(portCompos, compo)
		portRefs = append(portRefs, compo.BOMRef)

		var keyRefs []string
		for _, key := range port.SSHHostKeys {
			keyCompo, ok := hostKeyComponent(key)
			if !ok {
				continue
			}
			keyRefs = append(keyRefs, keyCompo.BOMRef)
			if _, dup := seen[keyCompo.BOMRef]; dup {
				continue
			}
			seen[keyCompo.BOMRef] = struct{}{}
			keyCompos = append(keyCompos, keyCompo)
			keyDeps = append(keyDeps, cdx.Dependency{Ref: keyCompo.BOMRef})
		}

		dep := cdx.Dependency{Ref: compo.BOMRef}
		if len(keyRefs) > 0 {
			dep.Dependencies = &keyRefs
		}
		portDeps = append(portDeps, dep)
	}

	var dependencies []cdx.Dependency
	if len(portCompos) > 0 {
		dependencies = append(dependencies, cdx.Dependency{
			Ref:          hostCompo.BOMRef,
			Dependencies: &portRefs,
		})
		dependencies = append(dependencies, portDeps...)
		dependencies = append(dependencies, keyDeps...)
	}

	components := append([]cdx.Component{hostCompo}, portCompos...)
	return append(components, keyCompos...), dependencies
}

func hostToComponent(host model.Host) (string, cdx.Component) {
	primaryAddr := "unknown"
	if len(host.Addresses) > 0 {
		primaryAddr = host.Addresses[0].Addr
	}

	props := []cdx.Property{
		{Name: "nmap:addresses", Value: addresses(host)},
		{Name: "nmap:status", Value: host.Status},
	}
	if names := hostnames(host); names != "" {
		props = append(props, cdx.Property{Name: "nmap:hostnames", Value: names})
	}
	if len(host.OSMatches) > 0 {
		best := host.OSMatches[0]
		props = append(props, cdx.Property{
			Name:  "nmap:os_match",
			Value: fmt.Sprintf("%s (%d%%)", best.Name, best.Accuracy),
		})
	}
	props = append(props, scriptProperties(host.HostScripts)...)

	return primaryAddr, cdx.Component{
		BOMRef:     "nmap:host/" + primaryAddr,
		Type:       cdx.ComponentTypeDevice,
		Name:       "host:" + primaryAddr,
		Properties: &props,
	}
}

func portToComponent(primaryAddr string, port model.Port) cdx.Component {
	state := strings.ToLower(port.State)
	proto := strings.ToLower(port.Protocol)

	props := []cdx.Property{
		{Name: "nmap:port", Value: strconv.Itoa(port.Port)},
		{Name: "nmap:protocol", Value: port.Protocol},
		{Name: "nmap:state", Value: port.State},
		{Name: "nmap:reason", Value: port.Reason},
		{Name: "nmap:service_name", Value: port.Service},
		{Name: "nmap:service_product", Value: port.Product},
		{Name: "nmap:service_version", Value: port.Version},
	}
	if port.ExtraInfo != "" {
		props = append(props, cdx.Property{Name: "nmap:service_extra_info", Value: port.ExtraInfo})
	}
	props = append(props, scriptProperties(port.Scripts)...)

	return cdx.Component{
		BOMRef:     fmt.Sprintf("nmap:%s/%s/%s:%d", proto, state, primaryAddr, port.Port),
		Type:       cdx.ComponentTypeData,
		Name:       fmt.Sprintf("%s/%d", port.Protocol, port.Port),
		Version:    port.Version,
		Properties: &props,
	}
}

func addresses(host model.Host) string {
	var addrs []string
	for _, a := range host.Addresses {
		addrs = append(addrs, a.Addr)
	}
	return strings.Join(addrs, ",")
}

func hostnames(host model.Host) string {
	var names []string
	for _, hn := range host.Hostnames {
		if hn.Name != "" {
			names = append(names, hn.Name)
		}
	}
	return strings.Join(names, ",")
}

func scriptProperties(scripts []model.ScriptOutput) []cdx.Property {
	props := make([]cdx.Property, 0, len(scripts))
	for _, s := range scripts {
		props = append(props, cdx.Property{
			Name:  "nmap:script:" + s.ID,
			Value: s.Output,
		})
	}
	return props
}
