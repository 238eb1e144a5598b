package ingest

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, src Source) ([]Event, error) {
	t.Helper()
	out := make(chan Event, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- src.Run(context.Background(), out)
		close(out)
	}()

	var events []Event
	for ev := range out {
		events = append(events, ev)
	}
	return events, <-errc
}

func TestJSONLines(t *testing.T) {
	input := `{"program":"opensnoop","fields":{"pid":42,"fname":"/etc/hosts"}}

{"program":"bindsnoop","value":3,"fields":{"port":"8080"},"extra":"ignored"}
`
	events, err := collect(t, NewJSONLines(strings.NewReader(input)))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "opensnoop", events[0].Program)
	assert.Nil(t, events[0].Value)
	assert.Equal(t, map[string]any{"pid": float64(42), "fname": "/etc/hosts"}, events[0].Fields)

	assert.Equal(t, "bindsnoop", events[1].Program)
	require.NotNil(t, events[1].Value)
	assert.Equal(t, float64(3), *events[1].Value)
}

func TestJSONLinesExplicitZeroValue(t *testing.T) {
	events, err := collect(t, NewJSONLines(strings.NewReader(`{"program":"a","value":0}`+"\n")))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Value)
	assert.Equal(t, float64(0), *events[0].Value)
}

func TestJSONLinesErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"malformed", "{\"program\":\"a\"}\n{not json}\n", "line 2: invalid event"},
		{"no program", "{\"fields\":{}}\n", "line 1: event has no program"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collect(t, NewJSONLines(strings.NewReader(tt.input)))
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestJSONLinesStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Event)

	errc := make(chan error, 1)
	go func() {
		errc <- NewJSONLines(strings.NewReader("{\"program\":\"a\"}\n")).Run(ctx, out)
	}()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("source did not stop")
	}
}

func TestJSONLinesStopsWhileWaitingForInput(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- NewJSONLines(pr).Run(ctx, make(chan Event))
	}()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("source blocked on an idle reader")
	}

	_, err := pw.Write([]byte("{}\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestChannelSource(t *testing.T) {
	in := make(chan Event, 2)
	in <- Event{Program: "a"}
	in <- Event{Program: "b"}
	close(in)

	events, err := collect(t, NewChannel(in))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[1].Program)
}
