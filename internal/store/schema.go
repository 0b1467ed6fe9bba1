package store

import "telemetry-broker/internal/model"

// SchemaSQL creates the broker tables. The layout is shared with the
// forwarding process, so column names and constraints must not drift.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS settings(
	key TEXT NOT NULL UNIQUE CONSTRAINT PK_settings PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS IX_settings_key ON settings (key);

CREATE TABLE IF NOT EXISTS sources(
	src_id TEXT NOT NULL UNIQUE CONSTRAINT PK_sources PRIMARY KEY,
	cfg TEXT NULL,
	active BOOLEAN NOT NULL CHECK(sources.active IN (0,1))
);

CREATE TABLE IF NOT EXISTS records(
	id INTEGER NOT NULL CONSTRAINT PK_records PRIMARY KEY AUTOINCREMENT,
	src_id TEXT NOT NULL,
	data BLOB NOT NULL,
	sent BOOLEAN NOT NULL CHECK(records.sent IN (0,1)),
	FOREIGN KEY(src_id) REFERENCES sources(src_id) ON DELETE CASCADE
);
`

// Setting keys seeded at initialization.
const (
	BrokerConfigurationKey     = "broker_configuration"
	DataFlowReconnectDelayKey  = "data_flow_reconnect_delay"
	DataSendingDelayKey        = "data_sending_delay"
	ModifiedTicksKey           = "modified_ticks"
	DescriptionKey             = "description"
	MaxCountDataRowsKey        = "max_count_data_rows"
	ClearDataDelayKey          = "clear_data_delay"
	PacketSizeKey              = "packet_size"
	VideoSegmentsExpirationKey = "video_segments_expiration"
)

// DefaultSettings are inserted with INSERT OR IGNORE, so values changed
// after the first start survive restarts.
var DefaultSettings = []model.Setting{
	{Key: BrokerConfigurationKey, Value: "{}"},
	{Key: DataFlowReconnectDelayKey, Value: "10000"},
	{Key: DataSendingDelayKey, Value: "1000"},
	{Key: ModifiedTicksKey, Value: "0"},
	{Key: DescriptionKey, Value: "Embedded broker"},
	{Key: MaxCountDataRowsKey, Value: "1000000"},
	{Key: ClearDataDelayKey, Value: "3600"},
	{Key: PacketSizeKey, Value: "1000"},
	{Key: VideoSegmentsExpirationKey, Value: "72"},
}
