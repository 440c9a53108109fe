package directory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/seedmonitor/pkg/types"
	"github.com/obsidianstack/seedmonitor/server/internal/config"
)

func testConfig(nodes ...config.SeedNodeConfig) *config.Config {
	cfg := config.Defaults()
	cfg.Server.Alerts.DefaultRecipient = "@seed-ops"
	cfg.SeedNodes = nodes
	return cfg
}

var (
	alice = types.NodeAddress{Host: "alice.onion", Port: 8000}
	bob   = types.NodeAddress{Host: "bob.onion", Port: 8000}
)

func TestFromConfig(t *testing.T) {
	d, err := FromConfig(testConfig(
		config.SeedNodeConfig{Address: "alice.onion:8000", Operator: "alice", Recipient: "@alice"},
		config.SeedNodeConfig{Address: "bob.onion:8000", Operator: "bob"},
	))
	require.NoError(t, err)

	assert.Equal(t, 2, d.Len())
	assert.Equal(t, "alice", d.Operator(alice))
	assert.Equal(t, "@alice", d.AlertRecipient(alice))
	assert.Equal(t, "@seed-ops", d.AlertRecipient(bob), "falls back to the default recipient")
}

func TestLookups_UnknownNode(t *testing.T) {
	d := New("@fallback")
	unknown := types.NodeAddress{Host: "x", Port: 1}
	assert.Equal(t, UndefinedOperator, d.Operator(unknown))
	assert.Equal(t, "@fallback", d.AlertRecipient(unknown))
}

func TestLoad_ReplacesTableAndDefault(t *testing.T) {
	d, err := FromConfig(testConfig(config.SeedNodeConfig{Address: "alice.onion:8000", Operator: "alice"}))
	require.NoError(t, err)

	next := testConfig(config.SeedNodeConfig{Address: "bob.onion:8000", Operator: "bob"})
	next.Server.Alerts.DefaultRecipient = "@night-shift"
	require.NoError(t, d.Load(next))

	assert.Equal(t, UndefinedOperator, d.Operator(alice))
	assert.Equal(t, "bob", d.Operator(bob))
	assert.Equal(t, "@night-shift", d.AlertRecipient(bob))
	assert.Equal(t, 1, d.Len())
}

func TestLoad_BadAddressKeepsTable(t *testing.T) {
	d, err := FromConfig(testConfig(config.SeedNodeConfig{Address: "alice.onion:8000", Operator: "alice"}))
	require.NoError(t, err)

	assert.Error(t, d.Load(testConfig(config.SeedNodeConfig{Address: "no-port"})))
	assert.Equal(t, "alice", d.Operator(alice))
	assert.Equal(t, "@seed-ops", d.AlertRecipient(alice))
}

func TestConcurrentLoadAndLookup(t *testing.T) {
	d := New("@x")
	with := testConfig(config.SeedNodeConfig{Address: "alice.onion:8000", Operator: "alice"})
	without := testConfig()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				cfg := with
				if j%2 == 1 {
					cfg = without
				}
				assert.NoError(t, d.Load(cfg))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				op := d.Operator(alice)
				assert.Contains(t, []string{"alice", UndefinedOperator}, op)
			}
		}()
	}
	wg.Wait()
}
