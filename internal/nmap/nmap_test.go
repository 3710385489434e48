package nmap_test

import (
	"embed"
	"strings"
	"testing"

	"github.com/CZERTAINLY/runway/internal/model"
	cznmap "github.com/CZERTAINLY/runway/internal/nmap"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/*
var testdata embed.FS

const ed25519Key = "AAAAC3NzaC1lZDI1NTE5AAAAIJRtSQZeBJ9RNWx5U50d/nkSnZpFIuvfyWeSWt7cC4nu"

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := testdata.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(b)
}

func TestParse_SSH(t *testing.T) {
	t.Parallel()

	res, err := cznmap.Parse(fixture(t, "ssh.xml"))
	require.NoError(t, err)
	require.Len(t, res.Hosts, 1)

	host := res.Hosts[0]
	require.Equal(t, "22/tcp (ssh)", host.OpenPortsSummary)
	require.Contains(t, res.Summary, "  Open ports: 22/tcp (ssh)")
	require.Equal(t,
		"Nmap scan completed. 1 host(s) up out of 1 scanned.\n"+
			"\nHost 1: 127.0.0.1 (localhost) [up]\n"+
			"  Open ports: 22/tcp (ssh)",
		res.Summary)
}

func TestParse(t *testing.T) {
	t.Parallel()

	res, err := cznmap.Parse(fixture(t, "scanme.xml"))
	require.NoError(t, err)

	require.Equal(t, model.ScanInfo{
		Scanner:    "nmap",
		Args:       "nmap -sT -p 22,80,443 -O -oX - scanme.nmap.org",
		StartTime:  "Fri Oct 17 08:00:00 2025",
		XMLVersion: "1.05",
		EndTime:    "Fri Oct 17 08:00:12 2025",
		Elapsed:    "12.34",
		HostsUp:    2,
		HostsDown:  1,
		HostsTotal: 3,
	}, res.ScanInfo)

	require.Len(t, res.Hosts, 3)

	scanme := res.Hosts[0]
	require.Equal(t, "up", scanme.Status)
	require.Equal(t, []model.Address{{Addr: "45.33.32.156", Type: "ipv4"}}, scanme.Addresses)
	require.Len(t, scanme.Hostnames, 2)
	require.Equal(t, model.Hostname{Name: "scanme.nmap.org", Type: "PTR"}, scanme.Hostnames[1])
	require.Len(t, scanme.Ports, 3)
	require.Equal(t, model.Port{
		Port:      22,
		Protocol:  "tcp",
		State:     "open",
		Reason:    "syn-ack",
		Service:   "ssh",
		Product:   "OpenSSH",
		Version:   "6.6.1p1 Ubuntu 2ubuntu2.13",
		ExtraInfo: "Ubuntu Linux; protocol 2.0",
		Scripts: []model.ScriptOutput{
			{ID: "ssh-hostkey", Output: "\n  256 b7:ee:0b:c0:30:80:39:d4:15:8f:86:42:09:83:48:76 (ED25519)\n  1024 5e:8c:2b:11:02:c4:6d:2a:9e:4f:70:01:d3:a7:aa:3c (DSA)"},
		},
		SSHHostKeys: []model.SSHHostKey{
			{
				Type:        "ssh-ed25519",
				Bits:        "256",
				Key:         ed25519Key,
				Fingerprint: "b7ee0bc0308039d4158f864209834876",
				SHA256:      "SHA256:8yOLM+nR1cRfqiAORzSj7fJj1+lJIdlprp9spbomOHU",
			},
			{
				Type:        "ssh-dss",
				Bits:        "1024",
				Key:         "AAAAB3NzaC1kc3M=",
				Fingerprint: "5e8c2b1102c46d2a9e4f7001d3a7aa3c",
			},
		},
	}, scanme.Ports[0])
	require.Equal(t, "closed", scanme.Ports[2].State)
	require.Nil(t, scanme.Ports[1].Scripts)
	require.Equal(t, "22/tcp (ssh), 80/tcp (http)", scanme.OpenPortsSummary)
	require.Len(t, scanme.OSMatches, 4)
	require.Equal(t, model.OSMatch{Name: "Linux 4.15 - 5.8", Accuracy: 96}, scanme.OSMatches[0])
	require.Equal(t, []model.ScriptOutput{{ID: "clock-skew", Output: "0s"}}, scanme.HostScripts)

	mac := res.Hosts[1]
	require.Equal(t, model.Address{Addr: "00:11:22:33:44:55", Type: "mac", Vendor: "Example Networks"}, mac.Addresses[1])
	require.Empty(t, mac.Hostnames)
	require.Equal(t, "161/udp (unknown)", mac.OpenPortsSummary)

	down := res.Hosts[2]
	require.Equal(t, "down", down.Status)
	require.Empty(t, down.Ports)
	require.Empty(t, down.OpenPortsSummary)

	exp := strings.Join([]string{
		"Nmap scan completed. 2 host(s) up out of 3 scanned.",
		"\nHost 1: 45.33.32.156 (scanme.nmap.org, scanme.nmap.org) [up]",
		"  Open ports: 22/tcp (ssh), 80/tcp (http)",
		"  OS guess: Linux 4.15 - 5.8 (96% accuracy)",
		"  OS guess: Linux 5.0 - 5.5 (95% accuracy)",
		"  OS guess: Linux 3.10 - 4.11 (93% accuracy)",
		"\nHost 2: 192.0.2.10, 00:11:22:33:44:55 [up]",
		"  Open ports: 161/udp (unknown)",
		"\nHost 3: 192.0.2.11 [down]",
		"  No open ports found.",
	}, "\n")
	require.Equal(t, exp, res.Summary)
	require.NotContains(t, res.Summary, "Linux 3.2 - 4.9")
}

func TestParse_Fail(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    string
	}{
		{scenario: "empty", given: ""},
		{scenario: "blank", given: " \n"},
		{scenario: "truncated", given: `<?xml version="1.0"?><nmaprun scanner="nmap"><host>`},
		{scenario: "not xml", given: "Starting Nmap 7.95"},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := cznmap.Parse(tc.given)
			require.Error(t, err)
			require.ErrorIs(t, err, model.ErrStructuring)
		})
	}
}

func TestParse_NoHosts(t *testing.T) {
	t.Parallel()
	res, err := cznmap.Parse(`<nmaprun scanner="nmap" args="nmap -oX - 192.0.2.99"><runstats><hosts up="0" down="1" total="1"/></runstats></nmaprun>`)
	require.NoError(t, err)
	require.Empty(t, res.Hosts)
	require.Equal(t, "Nmap scan completed. 0 host(s) up out of 1 scanned.", res.Summary)
}

func TestArgv(t *testing.T) {
	t.Parallel()

	path, args := cznmap.Argv("", []string{"-sT", "--top-ports", "100"}, "scanme.nmap.org")
	require.Equal(t, "nmap", path)
	require.Equal(t, []string{"-sT", "--top-ports", "100", "-oX", "-", "scanme.nmap.org"}, args)

	path, args = cznmap.Argv("/usr/local/bin/nmap", nil, "10.0.0.1")
	require.Equal(t, "/usr/local/bin/nmap", path)
	require.Equal(t, []string{"-oX", "-", "10.0.0.1"}, args)
}

func TestScanner(t *testing.T) {
	t.Parallel()

	cmd := cznmap.NewScanner().
		WithNmapBinary("/opt/nmap").
		Command("10.0.0.1", []string{"-p", "22"})
	require.Equal(t, "/opt/nmap", cmd.Path)
	require.Equal(t, []string{"-p", "22", "-oX", "-", "10.0.0.1"}, cmd.Args)
	require.True(t, cmd.FailOnSilentExit)
	require.Contains(t, cmd.Note, "10.0.0.1")

	require.Equal(t, "nmap", cznmap.NewScanner().WithNmapBinary("").Command("x", nil).Path)
}

func TestComponents(t *testing.T) {
	t.Parallel()

	res, err := cznmap.Parse(fixture(t, "scanme.xml"))
	require.NoError(t, err)

	compos, deps := cznmap.Components(res)
	// 3 hosts + 3 + 1 ports + 1 ssh host key
	require.Len(t, compos, 8)
	require.Equal(t, "nmap:host/45.33.32.156", compos[0].BOMRef)
	require.Equal(t, "host:45.33.32.156", compos[0].Name)
	require.Equal(t, "nmap:tcp/open/45.33.32.156:22", compos[1].BOMRef)
	require.Equal(t, "tcp/22", compos[1].Name)

	props := map[string]string{}
	for _, p := range *compos[1].Properties {
		props[p.Name] = p.Value
	}
	require.Equal(t, "ssh", props["nmap:service_name"])
	require.Equal(t, "OpenSSH", props["nmap:service_product"])
	require.Contains(t, props["nmap:script:ssh-hostkey"], "ED25519")

	const keyRef = "crypto/ssh-hostkey/ssh-ed25519@SHA256:8yOLM+nR1cRfqiAORzSj7fJj1+lJIdlprp9spbomOHU"
	key := compos[4]
	require.Equal(t, keyRef, key.BOMRef)
	require.Equal(t, "ssh-ed25519", key.Name)
	require.Equal(t, cdx.ComponentTypeCryptographicAsset, key.Type)
	require.NotNil(t, key.CryptoProperties)
	require.Equal(t, cdx.CryptoAssetTypeAlgorithm, key.CryptoProperties.AssetType)
	require.Equal(t, "1.3.101.112", key.CryptoProperties.OID)
	require.Equal(t, "ed25519", key.CryptoProperties.AlgorithmProperties.Curve)

	require.Equal(t, "nmap:host/45.33.32.156", deps[0].Ref)
	require.Equal(t, []string{
		"nmap:tcp/open/45.33.32.156:22",
		"nmap:tcp/open/45.33.32.156:80",
		"nmap:tcp/closed/45.33.32.156:443",
	}, *deps[0].Dependencies)
	require.Equal(t, "nmap:tcp/open/45.33.32.156:22", deps[1].Ref)
	require.Equal(t, []string{keyRef}, *deps[1].Dependencies)
	require.Nil(t, deps[2].Dependencies)
	require.Equal(t, keyRef, deps[4].Ref)

	// host without ports has no dependency entry
	for _, d := range deps {
		require.NotEqual(t, "nmap:host/192.0.2.11", d.Ref)
	}
}

func TestComponents_SharedKey(t *testing.T) {
	t.Parallel()

	port := model.Port{
		Port:     22,
		Protocol: "tcp",
		State:    "open",
		SSHHostKeys: []model.SSHHostKey{{
			Type:   "ssh-ed25519",
			Bits:   "256",
			Key:    ed25519Key,
			SHA256: "SHA256:8yOLM+nR1cRfqiAORzSj7fJj1+lJIdlprp9spbomOHU",
		}},
	}
	res := model.ScanResult{Hosts: []model.Host{
		{Status: "up", Addresses: []model.Address{{Addr: "10.0.0.1"}}, Ports: []model.Port{port}},
		{Status: "up", Addresses: []model.Address{{Addr: "10.0.0.2"}}, Ports: []model.Port{port}},
	}}

	compos, deps := cznmap.Components(res)
	var keys int
	for _, c := range compos {
		if c.Type == cdx.ComponentTypeCryptographicAsset {
			keys++
		}
	}
	require.Equal(t, 1, keys)

	refs := make(map[string]int)
	for _, d := range deps {
		refs[d.Ref]++
	}
	for ref, n := range refs {
		require.Equal(t, 1, n, ref)
	}
}

func TestSSHAlgorithm(t *testing.T) {
	t.Parallel()

	_, ok := cznmap.SSHAlgorithm("unknown-algorithm")
	require.False(t, ok)

	algo, ok := cznmap.SSHAlgorithm("ecdsa-sha2-nistp256")
	require.True(t, ok)
	exp := cdx.CryptoAlgorithmProperties{
		Primitive:              cdx.CryptoPrimitiveSignature,
		ParameterSetIdentifier: "nistp256@1.2.840.10045.3.1.7",
		Curve:                  "nistp256",
		CryptoFunctions:        &[]cdx.CryptoFunction{cdx.CryptoFunctionVerify},
	}
	require.Equal(t, exp, algo)
}
