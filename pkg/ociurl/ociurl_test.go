package ociurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_PlainDNSName(t *testing.T) {
	assert.NoError(t, Validate("oci://registry.example.com"))
}

func TestValidate_DNSNameWithPortAndPath(t *testing.T) {
	assert.NoError(t, Validate("oci://registry.example.com:5000/library/nginx"))
}

func TestValidate_IPv4Host(t *testing.T) {
	assert.NoError(t, Validate("oci://192.168.1.1:443/a/b"))
}

func TestValidate_IPv4RejectsOctetOverflow(t *testing.T) {
	assert.Error(t, Validate("oci://192.168.1.999"))
}

func TestValidate_BracketedIPv6(t *testing.T) {
	assert.NoError(t, Validate("oci://[2001:db8::1]:5000/a"))
}

func TestValidate_BracketedIPv6NoPort(t *testing.T) {
	assert.NoError(t, Validate("oci://[2001:db8::1]/a"))
}

func TestValidate_UnbracketedIPv6AmbiguityPreserved(t *testing.T) {
	// The literal example from the open question: an unbracketed IPv6 host
	// is accepted whole, with everything after the first '/' read as path.
	assert.NoError(t, Validate("oci://0001:1:1:1::1/myregistry.com"))
}

func TestValidate_UnbracketedIPv6NoPath(t *testing.T) {
	assert.NoError(t, Validate("oci://0001:1:1:1::1"))
}

func TestValidate_HostPortNoPath(t *testing.T) {
	assert.NoError(t, Validate("oci://registry.example.com:5000"))
}

func TestValidate_InvalidPortRejected(t *testing.T) {
	assert.Error(t, Validate("oci://registry.example.com:0/a"))
	assert.Error(t, Validate("oci://registry.example.com:70000/a"))
	assert.Error(t, Validate("oci://registry.example.com:abc/a"))
}

func TestValidate_MissingScheme(t *testing.T) {
	assert.Error(t, Validate("registry.example.com/a"))
}

func TestValidate_EmptyHost(t *testing.T) {
	assert.Error(t, Validate("oci://"))
	assert.Error(t, Validate("oci:///a"))
}

func TestValidate_FinalSegmentAllowsTagAndDigest(t *testing.T) {
	assert.NoError(t, Validate("oci://registry.example.com/library/nginx:1.21"))
	assert.NoError(t, Validate("oci://registry.example.com/library/nginx@sha256:abc"))
}

func TestValidate_NonFinalSegmentRejectsColonAndAt(t *testing.T) {
	assert.Error(t, Validate("oci://registry.example.com/library:tag/nginx"))
	assert.Error(t, Validate("oci://registry.example.com/library@x/nginx"))
}

func TestValidate_SegmentRejectsInvalidCharacters(t *testing.T) {
	assert.Error(t, Validate("oci://registry.example.com/lib rary"))
	assert.Error(t, Validate("oci://registry.example.com/lib/"))
}

func TestValidate_DNSNameRejectsEmptyLabel(t *testing.T) {
	assert.Error(t, Validate("oci://registry..example.com"))
}

func TestValidate_DNSNameRejectsInvalidCharacter(t *testing.T) {
	assert.Error(t, Validate("oci://registry_example.com"))
}

func TestValidate_BracketedIPv6UnterminatedRejected(t *testing.T) {
	assert.Error(t, Validate("oci://[2001:db8::1/a"))
}

func TestValidate_BracketedIPv6TrailerMustBeColon(t *testing.T) {
	assert.Error(t, Validate("oci://[2001:db8::1]junk/a"))
}
