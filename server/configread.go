package server

import (
	"io"
	"os"
	"strconv"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"
)

// InitConfig sets the defaults that apply before any config file or
// environment variable is read.
func InitConfig(c *Config) {
	c.BindPort = 3000
	c.Transport.Type = TransportTypeTCP
	c.Transport.BindPort = 3300
	c.Transport.Delimiter = "\r"
	c.Transport.MaxErrors = 10
	c.Transport.PingIntervalMS = 5000
}

func ReadConfig(filenames []string) (c Config, err error) {
	InitConfig(&c)
	err = ReadConfigFiles(filenames, &c)
	ReadConfigFromEnv("WIRELINE_", &c)

	return c, errors.Trace(err)
}

func ReadConfigFile(filename string, c *Config) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Annotatef(err, "read config file: %s", filename)
	}

	defer f.Close()

	err = ReadConfigYAML(f, c)

	return errors.Annotatef(err, "read yaml config: %s", filename)
}

func ReadConfigFiles(filenames []string, c *Config) (err error) {
	for _, filename := range filenames {
		err = ReadConfigFile(filename, c)
		if err != nil {
			return errors.Trace(err)
		}
	}

	return nil
}

func ReadConfigYAML(reader io.Reader, c *Config) error {
	decoder := yaml.NewDecoder(reader)
	if err := decoder.Decode(c); err != nil {
		return errors.Annotate(err, "decode yaml")
	}

	return nil
}

func ReadConfigFromEnv(prefix string, c *Config) {
	setEnvString(&c.BindHost, prefix+"BIND_HOST")
	setEnvInt(&c.BindPort, prefix+"BIND_PORT")
	setEnvString(&c.TLS.Cert, prefix+"TLS_CERT")
	setEnvString(&c.TLS.Key, prefix+"TLS_KEY")

	setEnvTransportType(&c.Transport.Type, prefix+"TRANSPORT_TYPE")
	setEnvString(&c.Transport.BindHost, prefix+"TRANSPORT_BIND_HOST")
	setEnvInt(&c.Transport.BindPort, prefix+"TRANSPORT_BIND_PORT")
	setEnvString(&c.Transport.Delimiter, prefix+"TRANSPORT_DELIMITER")
	setEnvInt(&c.Transport.MaxErrors, prefix+"TRANSPORT_MAX_ERRORS")
	setEnvInt(&c.Transport.PingIntervalMS, prefix+"TRANSPORT_PING_INTERVAL_MS")
	setEnvInt(&c.Transport.TimeoutMS, prefix+"TRANSPORT_TIMEOUT_MS")

	setEnvInt(&c.MaxClients, prefix+"MAX_CLIENTS")
	setEnvInt(&c.MaxRooms, prefix+"MAX_ROOMS")
	setEnvInt(&c.RoomMaxClients, prefix+"ROOM_MAX_CLIENTS")

	setEnvString(&c.Prometheus.AccessToken, prefix+"PROMETHEUS_ACCESS_TOKEN")
}

func setEnvString(dest *string, name string) {
	value := os.Getenv(name)
	if value != "" {
		*dest = value
	}
}

func setEnvInt(dest *int, name string) {
	value, err := strconv.Atoi(os.Getenv(name))
	if err == nil {
		*dest = value
	}
}

func setEnvTransportType(dest *TransportType, name string) {
	switch TransportType(os.Getenv(name)) {
	case TransportTypeTCP:
		*dest = TransportTypeTCP
	case TransportTypeUDP:
		*dest = TransportTypeUDP
	case TransportTypeWS:
		*dest = TransportTypeWS
	}
}
