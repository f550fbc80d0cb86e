package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  order_imported_topic_name: "orders.imported"
  shipment_requested_topic_name: "shipments.requested"
  consumer_group: "marketbox-worker"
redis:
  host: "localhost"
  port: 6379
marketbox:
  http_addr: ":8082"
  order_poll_interval_seconds: 30
  order_auto_accept: true
  accounts:
    acme:
      base_url: "https://acme.example.com"
      api_key: "k1"
      carrier_codes:
        ups: "UPSN"
    globex:
      base_url: "https://globex.example.com"
      api_key: "k2"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "orders.imported", cfg.Kafka.OrderImportedTopicName)
	require.Equal(t, "shipments.requested", cfg.Kafka.ShipmentRequestedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8082", cfg.Market.HTTPAddr)
	require.True(t, cfg.Market.OrderAutoAccept)
	require.Len(t, cfg.Market.Accounts, 2)
	require.Equal(t, "k1", cfg.Market.Accounts["acme"].APIKey)
	require.Equal(t, "UPSN", cfg.Market.Accounts["acme"].CarrierCodes["ups"])
	require.Empty(t, cfg.Market.Accounts["globex"].CarrierCodes)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
