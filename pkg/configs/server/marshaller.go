package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// When set, it replaces database.uri in config files.
const EnvDatabaseURI = "LMFDB_DATABASE_URI"

// load lmfdb config from a file.
//
// args:
//   - filepath: filepath refers a config file.
//
// returns *ServerConfig, error:
//
//	When loading success, returns `(*ServerConfig, nil)`.
//	Otherwise, returns `(nil, error)`.
func LoadServerConfig(filepath string) (*ServerConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

// Unmarshal parses yaml and seals it.
//
// Misconfigurations are reported as error, not panic.
func Unmarshal(conf []byte) (out *ServerConfig, err error) {
	var m *ServerConfigMarshall
	if err := yaml.Unmarshal(conf, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = &ServerConfigMarshall{}
	}
	if uri := os.Getenv(EnvDatabaseURI); uri != "" {
		if m.Database == nil {
			m.Database = &DatabaseConfigMarshall{}
		}
		m.Database.URI = uri
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("misconfiguration: %v", r)
		}
	}()
	return TrySeal(m), nil
}
