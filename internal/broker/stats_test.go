package broker

import (
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpapadakos/epiquery/internal/wire"
)

func TestParseIdentity(t *testing.T) {
	tag, port, ok := parseIdentity("3\n9103\n")
	require.True(t, ok)
	assert.Equal(t, 3, tag)
	assert.Equal(t, 9103, port)

	_, _, ok = parseIdentity("not-a-tag\n9103\n")
	assert.False(t, ok, "expected a non-numeric tag to be rejected")

	_, _, ok = parseIdentity("3\n")
	assert.False(t, ok, "expected a missing port field to be rejected")
}

func TestHandleStatsRegistersWorkerAndCountries(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	b := &Broker{Registry: NewWorkerRegistry(), Log: zerolog.Nop()}

	serverDone := make(chan struct{})
	go func() {
		conn, err := l.Accept()
		if err != nil {
			close(serverDone)
			return
		}
		b.handleStats(conn)
		close(serverDone)
	}()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	w := wire.NewWriter(conn)
	w.WriteLine("5\n9105")
	w.WriteDone()

	w.WriteLine("01-01-2020")
	w.WriteLine("France")
	w.WriteLine("covid19")
	for i := 0; i < 4; i++ {
		w.WriteLine("Age range 0-20 years: 0 cases")
	}
	w.WriteLine("")
	w.WriteDone()

	w.WriteReady()

	<-serverDone

	require.Equal(t, 1, b.Registry.Len())
	addrs := b.Registry.Addrs()
	require.Len(t, addrs, 1)

	_, port, err := net.SplitHostPort(addrs[0])
	require.NoError(t, err)
	assert.Equal(t, "9105", port)

	assert.Equal(t, []string{"France"}, b.Registry.Countries())
}
