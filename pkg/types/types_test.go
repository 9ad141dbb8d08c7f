package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget_PlainHost(t *testing.T) {
	target, err := ParseTarget("example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", target.Host)
	assert.Equal(t, "https", target.Scheme)
	assert.Empty(t, target.Ports)
}

func TestParseTarget_HostPort(t *testing.T) {
	target, err := ParseTarget("10.0.0.5:8080")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", target.Host)
	assert.Equal(t, []int{8080}, target.Ports)
}

func TestParseTarget_URL(t *testing.T) {
	target, err := ParseTarget("https://example.com:8443/login")
	require.NoError(t, err)
	assert.Equal(t, "example.com", target.Host)
	assert.Equal(t, "https", target.Scheme)
	assert.Equal(t, []int{8443}, target.Ports)
	assert.Equal(t, "https://example.com:8443/login", target.URL)
}

func TestParseTarget_Invalid(t *testing.T) {
	_, err := ParseTarget("  ")
	assert.Error(t, err)

	_, err = ParseTarget("example.com:99999")
	assert.Error(t, err)
}

func TestIsIPLiteral(t *testing.T) {
	assert.True(t, IsIPLiteral("192.0.2.10"))
	assert.True(t, IsIPLiteral("192.0.2.10:443"))
	assert.True(t, IsIPLiteral("::1"))
	assert.False(t, IsIPLiteral("example.com"))
	assert.False(t, IsIPLiteral(""))
}

func TestIsWebTarget(t *testing.T) {
	assert.True(t, IsWebTarget("example.com"))
	assert.True(t, IsWebTarget("http://192.0.2.10"))
	assert.False(t, IsWebTarget("192.0.2.10"))
	assert.False(t, IsWebTarget(""))
}

func TestInsights_UnknownFieldsSurviveRoundTrip(t *testing.T) {
	blob := `{
		"open_ports": [{"port": 22, "protocol": "tcp", "service": "SSH"}],
		"summary": {"risk_level": "LOW", "open_ports": 1, "issues": 0},
		"plugin_data": {"foo": "bar"}
	}`

	var in Insights
	require.NoError(t, json.Unmarshal([]byte(blob), &in))
	assert.Len(t, in.OpenPorts, 1)
	assert.Equal(t, RiskLow, in.Summary.RiskLevel)
	require.Contains(t, in.Extra, "plugin_data")

	out, err := json.Marshal(in)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Contains(t, decoded, "plugin_data")
	assert.JSONEq(t, `{"foo": "bar"}`, string(decoded["plugin_data"]))
}

func TestInsights_ServiceNames(t *testing.T) {
	in := &Insights{
		Services: []string{"HTTP"},
		OpenPorts: []PortInfo{
			{Port: 80, Service: "HTTP"},
			{Port: 22, Service: "SSH"},
			{Port: 1234, Service: "unknown"},
		},
	}
	assert.Equal(t, []string{"HTTP", "SSH"}, in.ServiceNames())
}

func TestSeverityRank_Ordering(t *testing.T) {
	assert.Less(t, SeverityRank(SeverityCritical), SeverityRank(SeverityHigh))
	assert.Less(t, SeverityRank(SeverityHigh), SeverityRank(SeverityInfo))
	assert.Equal(t, 5, SeverityRank(Severity("bogus")))
}
