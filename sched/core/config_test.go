package core_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/zjkmxy/pktsched/sched/core"
	"github.com/zjkmxy/pktsched/std/utils/toolutils"
)

func TestDefaultConfigValid(t *testing.T) {
	c := core.DefaultConfig()
	require.NoError(t, c.Validate())
	require.Equal(t, 10*time.Millisecond, c.WaitTimeout())
}

func TestConfigValidateRejects(t *testing.T) {
	c := core.DefaultConfig()
	c.Core.LogLevel = "LOUD"
	c.Qdisc.Flags = []string{"ecn", "turbo"}
	c.FQCoDel.IntervalUs = c.FQCoDel.TargetUs
	c.Interfaces = append(c.Interfaces, core.InterfaceConfig{Name: "", Representation: "skb"})

	err := c.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "LogLevel")
	require.Contains(t, err.Error(), "Flags[1]")
	require.Contains(t, err.Error(), "IntervalUs")
	require.Contains(t, err.Error(), "Interfaces[1].Name")
	require.Contains(t, err.Error(), "Interfaces[1].Representation")
}

func TestConfigBadgerPathOnlyForBadgerSink(t *testing.T) {
	c := core.DefaultConfig()
	c.Telemetry.Enabled = true
	c.Telemetry.Sinks = []string{"metrics"}
	c.Telemetry.BadgerPath = ""
	require.NoError(t, c.Validate())

	c.Telemetry.Sinks = []string{"metrics", "badger"}
	err := c.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "Telemetry.BadgerPath")

	c.Telemetry.Enabled = false
	require.NoError(t, c.Validate())
}

func TestConfigPayloadFitsDescBuffer(t *testing.T) {
	c := core.DefaultConfig()
	c.Alloc.BufferSize = 1024
	c.Traffic.PayloadSize = 1024 - 40
	c.Interfaces = []core.InterfaceConfig{{Name: "en0", Representation: "desc"}}
	require.NoError(t, c.Validate())

	c.Traffic.PayloadSize++
	err := c.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "Traffic.PayloadSize")
	require.Contains(t, err.Error(), "fits_buffer_size=984")

	// chains grow past one segment
	c.Interfaces[0].Representation = "mbuf"
	require.NoError(t, c.Validate())

	c.Interfaces = append(c.Interfaces, core.InterfaceConfig{Name: "en1", Representation: "descriptor"})
	require.Error(t, c.Validate())

	c.Traffic.Packets = 0
	require.NoError(t, c.Validate())
}

func TestConfigOverlay(t *testing.T) {
	file := filepath.Join(t.TempDir(), "pktsched.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
qdisc:
  limit: 256
  flags: [ecn]
interfaces:
  - name: en1
    representation: desc
    discipline: none
`), 0o644))

	c := core.DefaultConfig()
	require.NoError(t, toolutils.ReadYaml(c, file))
	require.NoError(t, c.Validate())

	want := core.DefaultConfig()
	want.Qdisc.Limit = 256
	want.Qdisc.Flags = []string{"ecn"}
	want.Interfaces = []core.InterfaceConfig{{Name: "en1", Representation: "desc", Discipline: "none"}}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigRejectsUnknownKeys(t *testing.T) {
	file := filepath.Join(t.TempDir(), "pktsched.yml")
	require.NoError(t, os.WriteFile(file, []byte("qdisc:\n  turbo: true\n"), 0o644))
	require.Error(t, toolutils.ReadYaml(core.DefaultConfig(), file))
}

func TestResolveRelPath(t *testing.T) {
	c := core.DefaultConfig()
	c.Core.BaseDir = "/etc/pktsched"
	require.Equal(t, "/etc/pktsched/drops.db", c.ResolveRelPath("drops.db"))
	require.Equal(t, "/var/drops.db", c.ResolveRelPath("/var/drops.db"))
}

func TestTimebase(t *testing.T) {
	core.InitTimebase()
	a := core.Now()
	time.Sleep(time.Millisecond)
	b := core.Now()
	require.Greater(t, b, a)
	require.Equal(t, time.Duration(0), core.ToDuration(core.ToTicks(-time.Second)))
	require.InDelta(t, float64(5*time.Millisecond), float64(core.ToDuration(core.ToTicks(5*time.Millisecond))), float64(core.Resolution()))
}
