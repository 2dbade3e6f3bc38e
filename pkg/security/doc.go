/*
Package security provides cryptographic services for the scan dispatch
subsystem.

This package implements three core security capabilities: secrets encryption
using AES-256-GCM, a Certificate Authority (CA) for mutual TLS (mTLS) to
external scanners, and certificate lifecycle management. Together, these
components protect credential-store secrets at rest and authenticate the
scanner connections a handler dials.

# Architecture

The security architecture is built on three pillars:

	┌─────────────────────────────────────────────────────────────┐
	│                    Security Architecture                    │
	└─────┬───────────────────────┬──────────────────┬────────────┘
	      │                       │                  │
	      ▼                       ▼                  ▼
	┌─────────────┐      ┌────────────────┐   ┌──────────────┐
	│   Secrets   │      │       CA       │   │ Certificate  │
	│ Encryption  │      │  (Root + Sub)  │   │  Management  │
	└─────┬───────┘      └────────┬───────┘   └──────┬───────┘
	      │                       │                   │
	      ▼                       ▼                   ▼
	  AES-256-GCM         RSA 4096-bit          90-day rotation
	  Credential refs     10-year validity      Manual renewal

## Store Encryption Key

All security is rooted in the store encryption key, a 32-byte key derived
from the store's identifying id during initialization:

	storeKey = SHA-256(storeID)  // 32 bytes for AES-256

This key encrypts:
  - Credential-store secrets (via SecretsManager)
  - CA private key (in storage)

The key is kept only in memory and must be supplied again whenever the
process restarts against the same BoltDB file.

# Secrets Encryption

## SecretsManager

The SecretsManager encrypts and decrypts credential-store secrets (SSH keys,
SMB passwords, SNMP community strings, etc.) using AES-256 in Galois/Counter
Mode (GCM), providing authenticated encryption:

	Plaintext → AES-256-GCM → Ciphertext + Authentication Tag
	                ↑
	            32-byte key

Key features:
  - Authenticated encryption (integrity + confidentiality)
  - Random nonce per encryption (no nonce reuse)

## Encryption Process

 1. Generate random 12-byte nonce
 2. Encrypt plaintext with AES-256-GCM
 3. Prepend nonce to ciphertext
 4. Store combined bytes: [nonce || ciphertext || tag]

## Secret Storage Format

A types.Secret bundles an opaque id, a display name, and the encrypted blob:

	Secret {
		ID:   "secret-abc123"
		Name: "ssh-root-key"
		Data: [nonce || ciphertext || tag]
	}

A task's Credentials.SSH/SMB/ESXi/SNMP/Krb5 fields hold the Secret.ID that
resolves to one of these records.

# Certificate Authority

## Root CA

The CA uses a self-signed root:

	Root CA (self-signed)
	├── 10-year validity
	├── RSA 4096-bit key
	├── KeyUsage: CertSign, CRLSign
	└── Subject: CN=Scan Engine Root CA, O=Scan Engine

The root certificate and its encrypted private key are persisted in the same
BoltDB file the queue/task/report data lives in, under the "ca" bucket.

## Scanner Client Certificates

The CA issues a client certificate when a handler dials an external scanner
over mTLS and has no usable cached one (missing, inside its rotation window,
or signed by a different CA):

	Scanner Certificate
	├── 90-day validity
	├── RSA 2048-bit key
	├── KeyUsage: DigitalSignature, KeyEncipherment
	├── ExtKeyUsage: ClientAuth, ServerAuth
	├── Subject: CN=scanner-{scannerID}, O=Scan Engine
	├── DNS Names: [scanner host, as configured]
	└── IP Addresses: [as given by the caller; the handler passes none]

ServerAuth is included alongside ClientAuth because the scanner's own TLS
listener uses the same certificate pair in loopback deployments; unix-socket
connections use no TLS.

## CLI Client Certificates

Operator CLI sessions also receive a certificate:

	CLI Certificate
	├── 90-day validity
	├── KeyUsage: DigitalSignature, KeyEncipherment
	├── ExtKeyUsage: ClientAuth
	└── Subject: CN=cli-{clientID}, O=Scan Engine

# Usage Examples

## Creating a Secrets Manager

	import "github.com/vulnscan/scanengine/pkg/security"

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	sm, err := security.NewSecretsManager(key)
	if err != nil {
		panic(err)
	}

## Setting Up the Certificate Authority

	import (
		"github.com/vulnscan/scanengine/pkg/security"
		"github.com/vulnscan/scanengine/pkg/storage"
	)

	store, err := storage.NewBoltStore("/var/lib/scanengine/store.db", time.Second)
	if err != nil {
		panic(err)
	}

	key := security.DeriveKeyFromStoreID(storeID)
	if err := security.SetStoreEncryptionKey(key); err != nil {
		panic(err)
	}

	ca := security.NewCertAuthority(store)
	if err := ca.Initialize(); err != nil {
		panic(err)
	}
	if err := ca.SaveToStore(); err != nil {
		panic(err)
	}

## Issuing a Scanner Certificate

	cert, err := ca.IssueScannerCertificate("openvas-1", []string{"localhost"}, nil)
	if err != nil {
		panic(err)
	}

## Certificate Rotation

	if security.CertNeedsRotation(cert.Leaf) {
		newCert, err := ca.IssueScannerCertificate("openvas-1", []string{"localhost"}, nil)
		if err != nil {
			panic(err)
		}
		_ = security.SaveCertToFile(newCert, certDir)
	}

# Integration Points

## Storage Integration

The CA's root material is persisted via storage.Store.SaveCA/GetCA:

	Bucket: "ca"
	Key: "root"
	Value: {RootCertDER: [...], RootKeyDER: [...encrypted...]}

## Scanner Client Integration

pkg/scanner dials the external scanner using the certificate this package
issues: the handler resolves a ConnectionData (CACert/ClientCert/ClientKey
PEM blobs) once per scan loop iteration and hands it to scanner.Connect.

# Security Considerations

The store encryption key is critical: its loss makes the CA private key and
every encrypted credential unrecoverable, and its compromise exposes every
credential-store secret. It should be derived from an id that is itself kept
outside the BoltDB file (e.g. supplied via environment or flag at startup).

Certificates expire after 90 days (scanner/CLI certs) or 10 years (root CA).
CertNeedsRotation flags certificates inside a 30-day window of expiry. The
handler reissues its cached scanner certificate once it is inside that
window; any other certificate is re-issued by its caller.
*/
package security
