package defn_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zjkmxy/pktsched/sched/defn"
)

func TestParse(t *testing.T) {
	kind, err := defn.ParseKind("fq_codel")
	require.NoError(t, err)
	require.Equal(t, defn.KindFQCoDel, kind)
	_, err = defn.ParseKind("red")
	require.ErrorIs(t, err, defn.ErrUnknownDiscipline)

	rep, err := defn.ParseRepresentation("descriptor")
	require.NoError(t, err)
	require.Equal(t, defn.RepDesc, rep)
	_, err = defn.ParseRepresentation("skb")
	require.ErrorIs(t, err, defn.ErrRepresentation)

	flags, err := defn.ParseQdiscFlags([]string{"ecn", "flowctl"})
	require.NoError(t, err)
	require.True(t, flags.Has(defn.QdiscFlagECN))
	require.True(t, flags.Has(defn.QdiscFlagFlowCtl))
	require.False(t, flags.Has(defn.QdiscFlagLowLatency))
	_, err = defn.ParseQdiscFlags([]string{"bogus"})
	require.ErrorIs(t, err, defn.ErrUnknownFlag)
}

func TestDropFlagsDirection(t *testing.T) {
	require.Equal(t, defn.DirOutput, (defn.DropFlagOutput | defn.DropFlagFlush).Direction())
	require.Equal(t, defn.DirInput, defn.DropFlagFlush.Direction())
	require.Equal(t, "if_flush", defn.ReasonIfFlush.String())
}
