package config

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Port drivers.
const (
	DriverLoopback = "loopback"
	DriverShm      = "shm"
	DriverKafka    = "kafka"
)

// Submit modes.
const (
	SubmitLoopback = "loopback"
	SubmitTransmit = "transmit"
)

type Config struct {
	App      AppConfig      `envPrefix:"APP_"`
	Port     PortConfig     `envPrefix:"PORT_"`
	Pipeline PipelineConfig `envPrefix:"PIPELINE_"`
	Journal  JournalConfig  `envPrefix:"JOURNAL_"`
	Outbox   OutboxConfig   `envPrefix:"OUTBOX_"`
}

type AppConfig struct {
	Name        string `env:"NAME" envDefault:"tickloop"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty   bool   `env:"LOG_PRETTY" envDefault:"false"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9100"`
	GRPCAddr    string `env:"GRPC_ADDR" envDefault:":50051"`
	// SimulateOrders > 0 submits that many random orders, waits
	// SettleDelay, prints statistics and exits.
	SimulateOrders int           `env:"SIMULATE_ORDERS" envDefault:"0"`
	SettleDelay    time.Duration `env:"SETTLE_DELAY" envDefault:"5s"`
}

type PortConfig struct {
	Driver    string `env:"DRIVER" envDefault:"loopback"`
	BurstSize int    `env:"BURST_SIZE" envDefault:"32"`
	Depth     int    `env:"DEPTH" envDefault:"4096"`

	RxPath   string `env:"RX_PATH"`
	TxPath   string `env:"TX_PATH"`
	Slots    int    `env:"SLOTS" envDefault:"4096"`
	SlotSize int    `env:"SLOT_SIZE" envDefault:"2048"`

	Brokers []string `env:"BROKERS" envSeparator:","`
	RxTopic string   `env:"RX_TOPIC" envDefault:"frames.in"`
	TxTopic string   `env:"TX_TOPIC" envDefault:"frames.out"`
	GroupID string   `env:"GROUP_ID" envDefault:"tickloop"`
}

type PipelineConfig struct {
	QueueCapacity uint64        `env:"QUEUE_CAPACITY" envDefault:"1024"`
	Symbol        string        `env:"SYMBOL" envDefault:"TICK"`
	SubmitMode    string        `env:"SUBMIT_MODE" envDefault:"loopback"`
	SubmitDelay   time.Duration `env:"SUBMIT_DELAY" envDefault:"50us"`
	DestIP        string        `env:"DEST_IP" envDefault:"10.0.0.1"`
	DestPort      uint16        `env:"DEST_PORT" envDefault:"12345"`

	StrategyEnabled bool   `env:"STRATEGY_ENABLED" envDefault:"true"`
	MaxSpread       uint32 `env:"MAX_SPREAD" envDefault:"2"`
	StrategyQty     uint32 `env:"STRATEGY_QTY" envDefault:"100"`

	LatencyWindow int           `env:"LATENCY_WINDOW" envDefault:"65536"`
	IdleTimeout   time.Duration `env:"IDLE_TIMEOUT" envDefault:"5m"`
	EvictInterval time.Duration `env:"EVICT_INTERVAL" envDefault:"30s"`
}

// DestIPv4 returns DestIP as the integer carried in IP headers.
func (p PipelineConfig) DestIPv4() (uint32, error) {
	addr, err := netip.ParseAddr(p.DestIP)
	if err != nil {
		return 0, err
	}
	if !addr.Is4() {
		return 0, fmt.Errorf("%s is not an IPv4 address", p.DestIP)
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), nil
}

// JournalConfig enables the message journal when Dir is set and
// periodic book snapshots when SnapshotDir is set.
type JournalConfig struct {
	Dir              string        `env:"DIR"`
	SegmentSize      int64         `env:"SEGMENT_SIZE" envDefault:"67108864"`
	SegmentDuration  time.Duration `env:"SEGMENT_DURATION" envDefault:"0"`
	SnapshotDir      string        `env:"SNAPSHOT_DIR"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"1m"`
}

// OutboxConfig enables the emitted-order outbox and its broadcaster
// when Dir is set.
type OutboxConfig struct {
	Dir      string        `env:"DIR"`
	Brokers  []string      `env:"BROKERS" envSeparator:","`
	Topic    string        `env:"TOPIC" envDefault:"orders.emitted"`
	Interval time.Duration `env:"INTERVAL" envDefault:"250ms"`
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var ErrInvalid = errors.New("invalid config")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	q := c.Pipeline.QueueCapacity
	if q < 2 || q&(q-1) != 0 {
		return invalid("PIPELINE_QUEUE_CAPACITY %d must be a power of two >= 2", q)
	}
	if c.Port.BurstSize <= 0 {
		return invalid("PORT_BURST_SIZE must be positive")
	}
	if c.Pipeline.LatencyWindow <= 0 {
		return invalid("PIPELINE_LATENCY_WINDOW must be positive")
	}

	switch c.Port.Driver {
	case DriverLoopback:
	case DriverShm:
		if c.Port.RxPath == "" || c.Port.TxPath == "" {
			return invalid("shm driver needs PORT_RX_PATH and PORT_TX_PATH")
		}
	case DriverKafka:
		if len(c.Port.Brokers) == 0 {
			return invalid("kafka driver needs PORT_BROKERS")
		}
	default:
		return invalid("unknown PORT_DRIVER %q", c.Port.Driver)
	}

	switch c.Pipeline.SubmitMode {
	case SubmitLoopback, SubmitTransmit:
	default:
		return invalid("unknown PIPELINE_SUBMIT_MODE %q", c.Pipeline.SubmitMode)
	}
	if _, err := c.Pipeline.DestIPv4(); err != nil {
		return invalid("PIPELINE_DEST_IP: %v", err)
	}

	if c.Outbox.Dir != "" && len(c.Outbox.Brokers) == 0 {
		return invalid("OUTBOX_DIR set without OUTBOX_BROKERS")
	}
	return nil
}
