package server

// TransportType selects the message transport the server listens on.
type TransportType string

const (
	TransportTypeTCP TransportType = "tcp"
	TransportTypeUDP TransportType = "udp"
	TransportTypeWS  TransportType = "ws"
)

type Config struct {
	// BindHost and BindPort bind the HTTP surface: probes, metrics and,
	// for the ws transport, the upgrade endpoint.
	BindHost string `yaml:"bind_host"`
	BindPort int    `yaml:"bind_port"`

	TLS struct {
		Cert string `yaml:"cert"`
		Key  string `yaml:"key"`
	} `yaml:"tls"`

	Transport TransportConfig `yaml:"transport"`

	// MaxClients caps the server-wide registry. Zero means unlimited.
	MaxClients int `yaml:"max_clients"`

	// MaxRooms caps the room registry. Zero means unlimited.
	MaxRooms int `yaml:"max_rooms"`

	// RoomMaxClients caps each room's membership. Zero means unlimited.
	RoomMaxClients int `yaml:"room_max_clients"`

	Prometheus PrometheusConfig `yaml:"prometheus"`
}

type TransportConfig struct {
	Type TransportType `yaml:"type"`

	// BindHost and BindPort bind the tcp or udp message transport. The
	// ws transport shares the HTTP surface instead.
	BindHost string `yaml:"bind_host"`
	BindPort int    `yaml:"bind_port"`

	// Delimiter terminates each envelope on stream transports. Both
	// sides must agree on it.
	Delimiter string `yaml:"delimiter"`

	// MaxErrors is the per-client transport error threshold before the
	// client is forcibly evicted.
	MaxErrors int `yaml:"max_errors"`

	// PingIntervalMS is the heartbeat ping interval.
	PingIntervalMS int `yaml:"ping_interval_ms"`

	// TimeoutMS is the per-client inactivity timeout. The knob is
	// accepted for configuration compatibility but enforcement is
	// advisory: no code path disconnects an idle client yet.
	TimeoutMS int `yaml:"timeout_ms"`
}

type PrometheusConfig struct {
	AccessToken string `yaml:"access_token"`
}
