package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/stretchr/testify/require"

	"apibaraDeserializer/internal/model"
)

func TestJsonlStorageAppendsAndScans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	store := NewJsonlStorage(path)

	first := model.Event{
		FromAddress: new(felt.Felt).SetUint64(0xabc),
		Keys:        []*felt.Felt{new(felt.Felt).SetUint64(1)},
		Data:        []*felt.Felt{new(felt.Felt).SetUint64(1000)},
		BlockNumber: 5,
		TxHash:      new(felt.Felt).SetUint64(0xbeef),
	}
	second := first
	second.BlockNumber = 6

	require.NoError(t, store.PutEvents([]model.Event{first}))
	require.NoError(t, store.PutEvents(nil))
	require.NoError(t, store.PutEvents([]model.Event{second}))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var got []*model.Event
	require.NoError(t, ScanEvents(file, func(_ []byte, ev *model.Event, err error) error {
		require.NoError(t, err)
		got = append(got, ev)
		return nil
	}))
	require.Len(t, got, 2)
	require.Equal(t, uint64(5), got[0].BlockNumber)
	require.Equal(t, uint64(6), got[1].BlockNumber)
	require.Equal(t, first.FromAddress, got[0].FromAddress)
	require.Equal(t, first.Data, got[1].Data)
}

func TestScanEventsMixedInput(t *testing.T) {
	input := strings.Join([]string{
		`{"fromAddress": {"hiHi": "2748"}, "keys": [{"hiHi": "1"}], "data": []}`,
		``,
		`not json`,
		`{"keys": []}`,
	}, "\n")

	var events, failures int
	err := ScanEvents(strings.NewReader(input), func(_ []byte, ev *model.Event, err error) error {
		if err != nil {
			failures++
			return nil
		}
		events++
		require.Equal(t, new(felt.Felt).SetUint64(2748), ev.FromAddress)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, events)
	require.Equal(t, 2, failures)
}
