package nmap

import (
	"encoding/base64"
	"strings"

	"github.com/CZERTAINLY/runway/internal/model"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/Ullaakut/nmap/v3"
	"golang.org/x/crypto/ssh"
)

const sshHostKeyScript = "ssh-hostkey"

var algoMap = map[string]cdx.CryptoAlgorithmProperties{
	"ecdsa-sha2-nistp256": {
		Primitive:              cdx.CryptoPrimitiveSignature,
		ParameterSetIdentifier: "nistp256@1.2.840.10045.3.1.7",
		Curve:                  "nistp256",
		CryptoFunctions:        &[]cdx.CryptoFunction{cdx.CryptoFunctionVerify},
	},
	"ecdsa-sha2-nistp384": {
		Primitive:              cdx.CryptoPrimitiveSignature,
		ParameterSetIdentifier: "nistp384@1.3.132.0.34",
		Curve:                  "nistp384",
		CryptoFunctions:        &[]cdx.CryptoFunction{cdx.CryptoFunctionVerify},
	},
	"ecdsa-sha2-nistp521": {
		Primitive:              cdx.CryptoPrimitiveSignature,
		ParameterSetIdentifier: "nistp521@1.3.132.0.35",
		Curve:                  "nistp521",
		CryptoFunctions:        &[]cdx.CryptoFunction{cdx.CryptoFunctionVerify},
	},
	"ssh-ed25519": {
		Primitive:              cdx.CryptoPrimitiveSignature,
		ParameterSetIdentifier: "ed25519@1.3.101.112",
		Curve:                  "ed25519",
		CryptoFunctions:        &[]cdx.CryptoFunction{cdx.CryptoFunctionVerify},
	},
	"rsa-sha2-256": {
		Primitive:              cdx.CryptoPrimitiveSignature,
		ParameterSetIdentifier: "rsa@1.2.840.113549.1.1.1",
		CryptoFunctions:        &[]cdx.CryptoFunction{cdx.CryptoFunctionVerify},
	},
	"rsa-sha2-512": {
		Primitive:              cdx.CryptoPrimitiveSignature,
		ParameterSetIdentifier: "rsa@1.2.840.113549.1.1.1",
		CryptoFunctions:        &[]cdx.CryptoFunction{cdx.CryptoFunctionVerify},
	},
	"ssh-rsa": { // legacy
		Primitive:              cdx.CryptoPrimitiveSignature,
		ParameterSetIdentifier: "rsa@1.2.840.113549.1.1.1",
		CryptoFunctions:        &[]cdx.CryptoFunction{cdx.CryptoFunctionVerify},
	},
}

// SSHAlgorithm returns CycloneDX crypto algorithm properties for a known SSH
// host key algorithm string. It reports ok=false if the algorithm is unsupported.
func SSHAlgorithm(algo string) (cdx.CryptoAlgorithmProperties, bool) {
	p, ok := algoMap[algo]
	return p, ok
}

// sshHostKeys decodes the structured output of the ssh-hostkey script, one
// key per table
func sshHostKeys(in []nmap.Script) []model.SSHHostKey {
	var ret []model.SSHHostKey
	for _, s := range in {
		if s.ID != sshHostKeyScript {
			continue
		}
		for _, table := range s.Tables {
			var key model.SSHHostKey
			for _, e := range table.Elements {
				switch e.Key {
				case "type":
					key.Type = e.Value
				case "bits":
					key.Bits = e.Value
				case "key":
					key.Key = e.Value
				case "fingerprint":
					key.Fingerprint = e.Value
				}
			}
			if key.Type == "" && key.Key == "" {
				continue
			}
			if pub, ok := publicKey(key.Key); ok {
				key.SHA256 = ssh.FingerprintSHA256(pub)
				if key.Type == "" {
					key.Type = pub.Type()
				}
			}
			ret = append(ret, key)
		}
	}
	return ret
}

func publicKey(b64 string) (ssh.PublicKey, bool) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, false
	}
	pub, err := ssh.ParsePublicKey(raw)
	if err != nil {
		return nil, false
	}
	return pub, true
}

// hostKeyComponent returns a cryptographic asset for a key of a known
// algorithm. Keys which did not parse are left out.
func hostKeyComponent(key model.SSHHostKey) (cdx.Component, bool) {
	algo, ok := SSHAlgorithm(key.Type)
	if !ok || key.SHA256 == "" {
		return cdx.Component{}, false
	}
	_, oid, _ := strings.Cut(algo.ParameterSetIdentifier, "@")

	return cdx.Component{
		BOMRef: "crypto/ssh-hostkey/" + key.Type + "@" + key.SHA256,
		Name:   key.Type,
		Type:   cdx.ComponentTypeCryptographicAsset,
		CryptoProperties: &cdx.CryptoProperties{
			AssetType:           cdx.CryptoAssetTypeAlgorithm,
			AlgorithmProperties: &algo,
			OID:                 oid,
		},
		Properties: &[]cdx.Property{
			{Name: "nmap:ssh_hostkey_bits", Value: key.Bits},
			{Name: "nmap:ssh_hostkey_content", Value: key.Key},
			{Name: "nmap:ssh_hostkey_fingerprint", Value: key.SHA256},
		},
	}, true
}
