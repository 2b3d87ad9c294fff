package toolutils_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zjkmxy/pktsched/std/utils/toolutils"
)

type sample struct {
	Name  string `json:"name"`
	Limit int    `json:"limit"`
}

func TestReadYaml(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yml")
	require.NoError(t, os.WriteFile(good, []byte("name: eth0\nlimit: 64\n"), 0o644))

	var s sample
	require.NoError(t, toolutils.ReadYaml(&s, good))
	require.Equal(t, sample{Name: "eth0", Limit: 64}, s)

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("name: eth0\nunknown: 1\n"), 0o644))
	require.Error(t, toolutils.ReadYaml(&s, bad))

	require.Error(t, toolutils.ReadYaml(&s, filepath.Join(dir, "missing.yml")))
}

func TestStatusPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := toolutils.StatusPrinter{File: &buf, Padding: 6}
	p.Print("qlen", 3)
	require.Equal(t, "  qlen=3\n", buf.String())
}
