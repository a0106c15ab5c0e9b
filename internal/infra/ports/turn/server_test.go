package turn

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qrave1/GoldLink/internal/application/config"
)

func TestNewServer(t *testing.T) {
	req := require.New(t)

	// Given: случайный порт на loopback
	turnCfg := config.TurnConfig{
		Embedded: true,
		ListenIP: "127.0.0.1",
		PublicIP: "127.0.0.1",
		Port:     0,
		Realm:    "goldlink",
	}

	// When
	server, err := NewServer(turnCfg, "shared-secret")

	// Then
	req.NoError(err)
	req.NoError(server.Close())
}

func TestNewServerPortBusy(t *testing.T) {
	req := require.New(t)

	// Given: udp порт уже занят
	busy, err := net.ListenPacket("udp4", "127.0.0.1:0")
	req.NoError(err)
	defer busy.Close()

	turnCfg := config.TurnConfig{
		ListenIP: "127.0.0.1",
		PublicIP: "127.0.0.1",
		Port:     busy.LocalAddr().(*net.UDPAddr).Port,
		Realm:    "goldlink",
	}

	// When
	_, err = NewServer(turnCfg, "shared-secret")

	// Then
	req.Error(err)
}
