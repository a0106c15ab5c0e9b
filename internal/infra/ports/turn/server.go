package turn

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/pion/logging"
	pionturn "github.com/pion/turn/v4"

	"github.com/qrave1/GoldLink/internal/application/config"
)

// NewServer поднимает встроенный TURN на UDP и TCP одного порта.
// Креды проверяются по той же REST схеме, что и у coturn, поэтому /api/ice работает с любым из них.
func NewServer(turnCfg config.TurnConfig, sharedSecret string) (*pionturn.Server, error) {
	addr := fmt.Sprintf("%s:%d", turnCfg.ListenIP, turnCfg.Port)

	udpListener, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("udp listen: %w", err)
	}

	tcpListener, err := net.Listen("tcp4", addr)
	if err != nil {
		_ = udpListener.Close()
		return nil, fmt.Errorf("tcp listen: %w", err)
	}

	relayAddressGenerator := &pionturn.RelayAddressGeneratorStatic{
		RelayAddress: net.ParseIP(turnCfg.PublicIP),
		Address:      turnCfg.ListenIP,
	}

	loggerFactory := slogLoggerFactory{}

	server, err := pionturn.NewServer(
		pionturn.ServerConfig{
			Realm:         turnCfg.Realm,
			AuthHandler:   pionturn.NewLongTermAuthHandler(sharedSecret, loggerFactory.NewLogger("turn-auth")),
			LoggerFactory: loggerFactory,
			PacketConnConfigs: []pionturn.PacketConnConfig{
				{
					PacketConn:            udpListener,
					RelayAddressGenerator: relayAddressGenerator,
				},
			},
			ListenerConfigs: []pionturn.ListenerConfig{
				{
					Listener:              tcpListener,
					RelayAddressGenerator: relayAddressGenerator,
				},
			},
		},
	)
	if err != nil {
		_ = udpListener.Close()
		_ = tcpListener.Close()

		return nil, fmt.Errorf("new turn server: %w", err)
	}

	slog.Info(
		"TURN server started",
		slog.String("addr", addr),
		slog.String("public_ip", turnCfg.PublicIP),
		slog.String("realm", turnCfg.Realm),
	)

	return server, nil
}

type slogLoggerFactory struct{}

func (slogLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return slogLogger{log: slog.With(slog.String("scope", scope))}
}

// slogLogger - pion логирует очень подробно, trace и debug уходят в debug
type slogLogger struct {
	log *slog.Logger
}

func (l slogLogger) Trace(msg string)                          { l.log.Debug(msg) }
func (l slogLogger) Tracef(format string, args ...interface{}) { l.log.Debug(fmt.Sprintf(format, args...)) }
func (l slogLogger) Debug(msg string)                          { l.log.Debug(msg) }
func (l slogLogger) Debugf(format string, args ...interface{}) { l.log.Debug(fmt.Sprintf(format, args...)) }
func (l slogLogger) Info(msg string)                           { l.log.Info(msg) }
func (l slogLogger) Infof(format string, args ...interface{})  { l.log.Info(fmt.Sprintf(format, args...)) }
func (l slogLogger) Warn(msg string)                           { l.log.Warn(msg) }
func (l slogLogger) Warnf(format string, args ...interface{})  { l.log.Warn(fmt.Sprintf(format, args...)) }
func (l slogLogger) Error(msg string)                          { l.log.Error(msg) }
func (l slogLogger) Errorf(format string, args ...interface{}) { l.log.Error(fmt.Sprintf(format, args...)) }
