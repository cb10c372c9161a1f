package infra

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fystack/walletstream/pkg/common/config"
	"github.com/fystack/walletstream/pkg/common/constant"
	"github.com/fystack/walletstream/pkg/common/logger"
)

func GetNATSConnection(natsConfig config.NATSCfg, environment string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1), // retry forever
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectHandler(func(nc *nats.Conn) {
			logger.Warn("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed!")
		}),
	}

	natsURL := natsConfig.URL
	if environment != constant.EnvProduction && natsURL == "" {
		natsURL = nats.DefaultURL
	}

	return nats.Connect(natsURL, opts...)
}
