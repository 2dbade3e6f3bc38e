package security

import (
	"crypto/x509"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vulnscan/scanengine/pkg/storage"
)

func newTestCAStore(t *testing.T) *storage.BoltStore {
	t.Helper()
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "ca.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func setTestEncryptionKey(t *testing.T) {
	t.Helper()
	key := DeriveKeyFromStoreID("test-store")
	require.NoError(t, SetStoreEncryptionKey(key))
}

func TestInitializeCA(t *testing.T) {
	setTestEncryptionKey(t)
	store := newTestCAStore(t)

	ca := NewCertAuthority(store)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Failed to initialize CA: %v", err)
	}

	if !ca.IsInitialized() {
		t.Error("CA should be initialized")
	}
	if ca.rootCert == nil {
		t.Error("Root certificate should not be nil")
	}
	if ca.rootKey == nil {
		t.Error("Root key should not be nil")
	}
	if !ca.rootCert.IsCA {
		t.Error("Root certificate should be a CA")
	}

	expectedExpiry := time.Now().Add(rootCAValidity)
	if ca.rootCert.NotAfter.Before(expectedExpiry.Add(-time.Hour)) {
		t.Errorf("Root cert expiry too early: %v, expected around %v", ca.rootCert.NotAfter, expectedExpiry)
	}
}

func TestSaveLoadCA(t *testing.T) {
	setTestEncryptionKey(t)
	store := newTestCAStore(t)

	ca1 := NewCertAuthority(store)
	if err := ca1.Initialize(); err != nil {
		t.Fatalf("Failed to initialize CA: %v", err)
	}
	if err := ca1.SaveToStore(); err != nil {
		t.Fatalf("Failed to save CA: %v", err)
	}

	ca2 := NewCertAuthority(store)
	if err := ca2.LoadFromStore(); err != nil {
		t.Fatalf("Failed to load CA: %v", err)
	}

	if !ca2.IsInitialized() {
		t.Error("Loaded CA should be initialized")
	}
	if !ca1.rootCert.Equal(ca2.rootCert) {
		t.Error("Loaded root cert should match original")
	}
	if ca1.rootKey.N.Cmp(ca2.rootKey.N) != 0 {
		t.Error("Loaded root key should match original")
	}
}

func TestIssueScannerCertificate(t *testing.T) {
	setTestEncryptionKey(t)
	store := newTestCAStore(t)

	ca := NewCertAuthority(store)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Failed to initialize CA: %v", err)
	}

	tests := []struct {
		name      string
		scannerID string
	}{
		{"OpenVAS scanner", "scanner1"},
		{"OSP sensor", "scanner2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert, err := ca.IssueScannerCertificate(tt.scannerID, []string{}, []net.IP{})
			if err != nil {
				t.Fatalf("Failed to issue certificate: %v", err)
			}

			if cert.Leaf == nil {
				t.Error("Certificate Leaf should not be nil")
			}

			expectedCN := "scanner-" + tt.scannerID
			if cert.Leaf.Subject.CommonName != expectedCN {
				t.Errorf("Expected CN %s, got %s", expectedCN, cert.Leaf.Subject.CommonName)
			}

			expectedExpiry := time.Now().Add(clientCertValidity)
			if cert.Leaf.NotAfter.Before(expectedExpiry.Add(-time.Hour)) {
				t.Errorf("Cert expiry too early: %v, expected around %v", cert.Leaf.NotAfter, expectedExpiry)
			}

			if cert.Leaf.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
				t.Error("Certificate should have DigitalSignature key usage")
			}

			hasClientAuth := false
			hasServerAuth := false
			for _, usage := range cert.Leaf.ExtKeyUsage {
				if usage == x509.ExtKeyUsageClientAuth {
					hasClientAuth = true
				}
				if usage == x509.ExtKeyUsageServerAuth {
					hasServerAuth = true
				}
			}
			if !hasClientAuth {
				t.Error("Certificate should have ClientAuth extended key usage")
			}
			if !hasServerAuth {
				t.Error("Certificate should have ServerAuth extended key usage")
			}
		})
	}
}

func TestIssueClientCertificate(t *testing.T) {
	setTestEncryptionKey(t)
	store := newTestCAStore(t)

	ca := NewCertAuthority(store)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Failed to initialize CA: %v", err)
	}

	clientID := "operator@workstation"
	cert, err := ca.IssueClientCertificate(clientID)
	if err != nil {
		t.Fatalf("Failed to issue client certificate: %v", err)
	}

	if cert.Leaf == nil {
		t.Error("Certificate Leaf should not be nil")
	}

	expectedCN := "cli-" + clientID
	if cert.Leaf.Subject.CommonName != expectedCN {
		t.Errorf("Expected CN %s, got %s", expectedCN, cert.Leaf.Subject.CommonName)
	}

	hasClientAuth := false
	hasServerAuth := false
	for _, usage := range cert.Leaf.ExtKeyUsage {
		if usage == x509.ExtKeyUsageClientAuth {
			hasClientAuth = true
		}
		if usage == x509.ExtKeyUsageServerAuth {
			hasServerAuth = true
		}
	}
	if !hasClientAuth {
		t.Error("Client certificate should have ClientAuth extended key usage")
	}
	if hasServerAuth {
		t.Error("Client certificate should not have ServerAuth extended key usage")
	}
}

func TestVerifyCertificate(t *testing.T) {
	setTestEncryptionKey(t)
	store := newTestCAStore(t)

	ca := NewCertAuthority(store)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Failed to initialize CA: %v", err)
	}

	cert, err := ca.IssueScannerCertificate("test-scanner", []string{}, []net.IP{})
	if err != nil {
		t.Fatalf("Failed to issue certificate: %v", err)
	}

	if err := ca.VerifyCertificate(cert.Leaf); err != nil {
		t.Errorf("Certificate verification failed: %v", err)
	}
}

func TestGetRootCACert(t *testing.T) {
	setTestEncryptionKey(t)
	store := newTestCAStore(t)

	ca := NewCertAuthority(store)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Failed to initialize CA: %v", err)
	}

	rootCertDER := ca.GetRootCACert()
	if rootCertDER == nil {
		t.Fatal("Root CA cert should not be nil")
	}

	parsedCert, err := x509.ParseCertificate(rootCertDER)
	if err != nil {
		t.Fatalf("Failed to parse root CA cert: %v", err)
	}
	if !parsedCert.Equal(ca.rootCert) {
		t.Error("Returned root CA cert should match internal cert")
	}
}

func TestCertCache(t *testing.T) {
	setTestEncryptionKey(t)
	store := newTestCAStore(t)

	ca := NewCertAuthority(store)
	if err := ca.Initialize(); err != nil {
		t.Fatalf("Failed to initialize CA: %v", err)
	}

	scannerID := "test-scanner"
	if _, err := ca.IssueScannerCertificate(scannerID, []string{}, []net.IP{}); err != nil {
		t.Fatalf("Failed to issue certificate: %v", err)
	}

	cached, exists := ca.GetCachedCert(scannerID)
	if !exists {
		t.Error("Certificate should be in cache")
	}
	if cached == nil {
		t.Error("Cached certificate should not be nil")
	}
	if cached.Cert.Subject.CommonName != "scanner-"+scannerID {
		t.Errorf("Cached cert CN mismatch: %s", cached.Cert.Subject.CommonName)
	}
}
