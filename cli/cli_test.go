package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwa-onchain/model"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "listings", "quote", "price", "verify-tx"}, names)
}

func TestConfigErrorStopsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network: [oops"), 0o600))

	root := newRootCmd()
	root.SetArgs([]string{"--config", path, "verify-tx", "0x01"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestQuoteRequiresTokenID(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"quote"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	assert.Error(t, root.Execute())
}

func TestListingTable(t *testing.T) {
	data := listingTable([]model.Listing{
		{TokenID: "1", Name: "Loft", AssetType: "Real Estate", Amount: 12, PriceWei: "1500000000000000000", Seller: "0x1234567890abcdef1234567890abcdef12345678"},
		{TokenID: "2", Name: "Gold", AssetType: "Commodity", Amount: 3, PriceLabel: "2.0000 S (~$4,000.00)", Seller: "0xabc"},
	}, "S")

	require.Len(t, data, 3)
	assert.Equal(t, []string{"Token", "Name", "Type", "Available", "Price", "Seller"}, data[0])
	assert.Equal(t, []string{"1", "Loft", "Real Estate", "12", "1.5 S", "0x1234…5678"}, data[1])
	assert.Equal(t, "2.0000 S (~$4,000.00)", data[2][4])
	assert.Equal(t, "0xabc", data[2][5])
}

func TestRunAndWaitStopsListenerOnServerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var listener sync.WaitGroup
	listener.Add(1)
	go func() {
		defer listener.Done()
		<-ctx.Done()
	}()

	done := make(chan error, 1)
	go func() {
		done <- runAndWait(cancel, func() error {
			return errors.New("listen tcp :8080: bind: address already in use")
		}, &listener)
	}()

	select {
	case err := <-done:
		assert.EqualError(t, err, "listen tcp :8080: bind: address already in use")
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after the server failed")
	}
}
