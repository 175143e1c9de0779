package am

import (
	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/legisync/errors"
)

const redacted = "********"

// Render returns the configuration as TOML with secrets redacted
func (c *Config) Render() ([]byte, error) {
	shown := *c
	if shown.Store.Token != "" {
		shown.Store.Token = redacted
	}

	data, err := toml.Marshal(shown)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render config")
	}
	return data, nil
}
