package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tickloop/infra/config"
	"tickloop/infra/nic"
	"tickloop/service"
)

func TestOptionsFromConfig(t *testing.T) {
	t.Setenv("PIPELINE_SUBMIT_MODE", "transmit")
	t.Setenv("PIPELINE_DEST_IP", "192.168.1.20")
	t.Setenv("JOURNAL_SNAPSHOT_INTERVAL", "10s")

	cfg, err := config.Load()
	require.NoError(t, err)

	opts, err := optionsFrom(cfg)
	require.NoError(t, err)
	assert.Equal(t, service.SubmitTransmit, opts.SubmitMode)
	assert.Equal(t, uint32(0xC0A80114), opts.DestIP)
	assert.Equal(t, uint16(12345), opts.DestPort)
	assert.Equal(t, 10*time.Second, opts.SnapshotInterval)
	assert.Equal(t, 32, opts.BurstSize)
}

func TestOpenLoopbackPort(t *testing.T) {
	port, err := openPort(config.PortConfig{Driver: config.DriverLoopback, Depth: 8}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer port.Close()
	assert.IsType(t, &nic.Loopback{}, port)
}

func TestSimulateFeedsPipeline(t *testing.T) {
	opts := service.DefaultOptions()
	opts.SubmitDelay = 0
	opts.StrategyEnabled = false
	p, err := service.New(service.Deps{Port: nic.NewLoopback(256), Logger: zaptest.NewLogger(t)}, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	err = simulate(ctx, p, 100, 10*time.Millisecond, zaptest.NewLogger(t))
	require.ErrorIs(t, err, errSimulationDone)

	require.Eventually(t, func() bool {
		return p.Stats().Processed == 100
	}, 2*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	s := p.Stats()
	assert.Equal(t, uint64(100), s.Submitted)
	assert.Zero(t, s.Drops)
}
