package model

// ExecResult is the captured outcome of one external process run.
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// ShellResult is the structured result of the shell variant.
type ShellResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Summary  string `json:"summary"`
}

// ScanResult is the structured result of the nmap variant.
type ScanResult struct {
	ScanInfo ScanInfo `json:"scan_info"`
	Hosts    []Host   `json:"hosts"`
	Summary  string   `json:"summary"`
}

// ScanInfo holds scanner identity and run statistics
type ScanInfo struct {
	Scanner    string `json:"scanner"`
	Args       string `json:"args"`
	StartTime  string `json:"start_time"`
	XMLVersion string `json:"xml_version"`
	EndTime    string `json:"end_time,omitempty"`
	Elapsed    string `json:"elapsed,omitempty"`
	HostsUp    int    `json:"hosts_up"`
	HostsDown  int    `json:"hosts_down"`
	HostsTotal int    `json:"hosts_total"`
}

type Host struct {
	Status           string         `json:"status"`
	Addresses        []Address      `json:"addresses"`
	Hostnames        []Hostname     `json:"hostnames"`
	Ports            []Port         `json:"ports"`
	OSMatches        []OSMatch      `json:"os_matches"`
	HostScripts      []ScriptOutput `json:"host_scripts,omitempty"`
	OpenPortsSummary string         `json:"open_ports_summary"`
}

type Address struct {
	Addr   string `json:"addr"`
	Type   string `json:"type"`
	Vendor string `json:"vendor"`
}

type Hostname struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Port contains nmap output for a given port
type Port struct {
	Port      int            `json:"port"`
	Protocol  string         `json:"protocol"`
	State     string         `json:"state"`
	Reason    string         `json:"reason"`
	Service   string         `json:"service"`
	Product   string         `json:"product"`
	Version   string         `json:"version"`
	ExtraInfo string         `json:"extra_info"`
	Scripts   []ScriptOutput `json:"scripts,omitempty"`

	// SSHHostKeys are decoded from the ssh-hostkey script
	SSHHostKeys []SSHHostKey `json:"ssh_host_keys,omitempty"`
}

// SSHHostKey is one key reported by the ssh-hostkey script of nmap
type SSHHostKey struct {
	Type string `json:"type"`
	Bits string `json:"bits"`
	Key  string `json:"key"`

	// Fingerprint is hex MD5, as reported by nmap
	Fingerprint string `json:"fingerprint"`

	// SHA256 is empty when the key does not parse
	SHA256 string `json:"sha256,omitempty"`
}

type OSMatch struct {
	Name     string `json:"name"`
	Accuracy int    `json:"accuracy"`
}

// ScriptOutput is a raw output of nmap script
type ScriptOutput struct {
	ID     string `json:"id"`
	Output string `json:"output"`
}
