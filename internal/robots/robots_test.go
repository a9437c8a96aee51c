package robots

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleRobots = `
User-agent: *
Disallow: /private/
Disallow: /admin

User-agent: crawlbot
Disallow: /private/
Allow: /admin
`

func TestPolicy_Allowed_DefaultGroup(t *testing.T) {
	p, err := Parse(sampleRobots)
	require.NoError(t, err)

	require.True(t, p.Allowed("some-other-bot", "/index.html"))
	require.False(t, p.Allowed("some-other-bot", "/private/data"))
	require.False(t, p.Allowed("some-other-bot", "/admin"))
}

func TestPolicy_Allowed_SpecificGroupOverridesWildcard(t *testing.T) {
	p, err := Parse(sampleRobots)
	require.NoError(t, err)

	require.False(t, p.Allowed("crawlbot", "/private/data"))
	require.True(t, p.Allowed("crawlbot", "/admin"))
}

func TestPolicy_Allowed_EmptyPolicyAllowsEverything(t *testing.T) {
	p, err := Parse("")
	require.NoError(t, err)
	require.True(t, p.Allowed("anything", "/whatever"))
}

func TestPolicy_Allowed_NilPolicyAllowsEverything(t *testing.T) {
	var p *Policy
	require.True(t, p.Allowed("anything", "/whatever"))
}

