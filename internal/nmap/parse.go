package nmap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CZERTAINLY/runway/internal/model"

	"github.com/Ullaakut/nmap/v3"
)

const maxOSGuesses = 3

// Parse converts an nmap XML report into a ScanResult. Malformed XML is
// a model.ErrStructuring, nothing is skipped silently.
func Parse(raw string) (model.ScanResult, error) {
	if strings.TrimSpace(raw) == "" {
		return model.ScanResult{}, fmt.Errorf("%w: empty nmap output", model.ErrStructuring)
	}
	run, err := nmap.Parse([]byte(raw))
	if err != nil {
		return model.ScanResult{}, fmt.Errorf("%w: parsing nmap XML: %v", model.ErrStructuring, err)
	}

	info := scanInfo(run)
	hosts := make([]model.Host, 0, len(run.Hosts))
	for _, h := range run.Hosts {
		hosts = append(hosts, host(h))
	}

	return model.ScanResult{
		ScanInfo: info,
		Hosts:    hosts,
		Summary:  Summary(info, hosts),
	}, nil
}

func scanInfo(run *nmap.Run) model.ScanInfo {
	scanner := run.Scanner
	if scanner == "" {
		scanner = "nmap"
	}
	info := model.ScanInfo{
		Scanner:    scanner,
		Args:       run.Args,
		StartTime:  run.StartStr,
		XMLVersion: run.XMLOutputVersion,
		EndTime:    run.Stats.Finished.TimeStr,
		HostsUp:    run.Stats.Hosts.Up,
		HostsDown:  run.Stats.Hosts.Down,
		HostsTotal: run.Stats.Hosts.Total,
	}
	if run.Stats.Finished.Elapsed != 0 {
		info.Elapsed = strconv.FormatFloat(float64(run.Stats.Finished.Elapsed), 'f', -1, 32)
	}
	return info
}

func host(h nmap.Host) model.Host {
	status := h.Status.State
	if status == "" {
		status = "unknown"
	}

	ret := model.Host{
		Status:    status,
		Addresses: make([]model.Address, 0, len(h.Addresses)),
		Hostnames: make([]model.Hostname, 0, len(h.Hostnames)),
		Ports:     make([]model.Port, 0, len(h.Ports)),
		OSMatches: make([]model.OSMatch, 0, len(h.OS.Matches)),
	}
	for _, a := range h.Addresses {
		ret.Addresses = append(ret.Addresses, model.Address{
			Addr:   a.Addr,
			Type:   a.AddrType,
			Vendor: a.Vendor,
		})
	}
	for _, hn := range h.Hostnames {
		ret.Hostnames = append(ret.Hostnames, model.Hostname{
			Name: hn.Name,
			Type: hn.Type,
		})
	}
	for _, p := range h.Ports {
		ret.Ports = append(ret.Ports, model.Port{
			Port:      int(p.ID),
			Protocol:  p.Protocol,
			State:     p.State.State,
			Reason:    p.State.Reason,
			Service:   p.Service.Name,
			Product:   p.Service.Product,
			Version:   p.Service.Version,
			ExtraInfo: p.Service.ExtraInfo,
			Scripts:   scripts(p.Scripts),

			SSHHostKeys: sshHostKeys(p.Scripts),
		})
	}
	for _, m := range h.OS.Matches {
		ret.OSMatches = append(ret.OSMatches, model.OSMatch{
			Name:     m.Name,
			Accuracy: m.Accuracy,
		})
	}
	ret.HostScripts = scripts(h.HostScripts)
	ret.OpenPortsSummary = OpenPorts(ret.Ports)
	return ret
}

func scripts(in []nmap.Script) []model.ScriptOutput {
	if len(in) == 0 {
		return nil
	}
	ret := make([]model.ScriptOutput, 0, len(in))
	for _, s := range in {
		ret = append(ret, model.ScriptOutput{ID: s.ID, Output: s.Output})
	}
	return ret
}

// OpenPorts lists ports in state open as "port/proto (service)"
func OpenPorts(ports []model.Port) string {
	var open []string
	for _, p := range ports {
		if p.State != "open" {
			continue
		}
		service := p.Service
		if service == "" {
			service = "unknown"
		}
		open = append(open, fmt.Sprintf("%d/%s (%s)", p.Port, p.Protocol, service))
	}
	return strings.Join(open, ", ")
}

// Summary returns the human readable digest of a scan
func Summary(info model.ScanInfo, hosts []model.Host) string {
	parts := []string{
		fmt.Sprintf("Nmap scan completed. %d host(s) up out of %d scanned.", info.HostsUp, info.HostsTotal),
	}

	for i, h := range hosts {
		addrs := make([]string, 0, len(h.Addresses))
		for _, a := range h.Addresses {
			addrs = append(addrs, a.Addr)
		}
		var names []string
		for _, hn := range h.Hostnames {
			if hn.Name != "" {
				names = append(names, hn.Name)
			}
		}
		label := strings.Join(addrs, ", ")
		if len(names) > 0 {
			label += " (" + strings.Join(names, ", ") + ")"
		}
		parts = append(parts, fmt.Sprintf("\nHost %d: %s [%s]", i+1, label, h.Status))

		if h.OpenPortsSummary != "" {
			parts = append(parts, "  Open ports: "+h.OpenPortsSummary)
		} else {
			parts = append(parts, "  No open ports found.")
		}

		for _, m := range h.OSMatches[:min(len(h.OSMatches), maxOSGuesses)] {
			parts = append(parts, fmt.Sprintf("  OS guess: %s (%d%% accuracy)", m.Name, m.Accuracy))
		}
	}

	return strings.Join(parts, "\n")
}
