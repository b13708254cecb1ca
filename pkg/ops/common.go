package ops

import "github.com/hashicorp/go-hclog"

// common is embedded by the ops types to give them a logger. They log to
// hclog's default logger until SetLogger is called.
type common struct {
	logger hclog.Logger
}

func (c *common) L() hclog.Logger {
	if c.logger == nil {
		c.logger = hclog.L()
	}

	return c.logger
}

func (c *common) SetLogger(logger hclog.Logger) {
	c.logger = logger
}
