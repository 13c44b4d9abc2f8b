package serial

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockDriver_OpenCloseLog(t *testing.T) {
	d := NewMockDriver()
	ctx := context.Background()

	p1, err := d.Open(ctx, PortConfig{Device: "/dev/ttyUSB0", BaudRate: 9600})
	require.NoError(t, err)
	require.NoError(t, p1.Close())
	require.NoError(t, p1.Close())

	p2, err := d.Open(ctx, PortConfig{Device: "/dev/ttyUSB1", BaudRate: 19200})
	require.NoError(t, err)

	assert.Equal(t, []string{"open /dev/ttyUSB0", "close /dev/ttyUSB0", "open /dev/ttyUSB1"}, d.Events())
	assert.Same(t, p2, d.Last())
	assert.Len(t, d.Opened(), 2)
	assert.Equal(t, 19200, d.Configs()[1].BaudRate)
}

func TestMockDriver_Errors(t *testing.T) {
	d := NewMockDriver(PortDescriptor{Path: "/dev/ttyS0"})
	ctx := context.Background()

	ports, err := d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []PortDescriptor{{Path: "/dev/ttyS0"}}, ports)

	d.SetListError(errors.New("udev unavailable"))
	_, err = d.List(ctx)
	assert.Error(t, err)

	busy := errors.New("device busy")
	d.SetOpenError(busy)
	_, err = d.Open(ctx, PortConfig{Device: "/dev/ttyS0"})
	assert.ErrorIs(t, err, busy)
	assert.Nil(t, d.Last())
	assert.Equal(t, []string{"open-failed /dev/ttyS0"}, d.Events())
}

func TestMockPort_WriteAfterClose(t *testing.T) {
	p := NewMockPort("/dev/ttyS0")
	_, err := p.Write([]byte("a"))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Write([]byte("b"))
	assert.ErrorIs(t, err, ErrPortClosed)
	assert.Equal(t, [][]byte{[]byte("a")}, p.GetWrites())
	assert.Error(t, p.FeedString("late"))
}
