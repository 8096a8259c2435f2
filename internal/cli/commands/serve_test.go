package commands

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
	"github.com/conduit-lang/ormmeta/internal/orm/modelfile"
	"github.com/conduit-lang/ormmeta/internal/web/api"
)

func TestServe_ShutsDownWhenContextIsDone(t *testing.T) {
	doc, err := modelfile.Parse([]byte(shopModel))
	require.NoError(t, err)
	model := metadata.NewModel()
	require.NoError(t, doc.Apply(model))
	frozen, err := model.Freeze()
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, listener, api.NewHandler(frozen, logger), logger)
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/order")
	require.NoError(t, err)
	var body api.OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, []string{"customer", "order", "orderLine"}, body.Order)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Equal(t, 1, logs.FilterMessage("shutting down").Len())
	assert.Equal(t, 1, logs.FilterMessage("request").Len())
}

func TestServe_ListenerError(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, listener.Close())

	err = serve(context.Background(), listener, http.NotFoundHandler(), zap.NewNop())
	assert.Error(t, err)
}

func TestServeCommand_InvalidModel(t *testing.T) {
	path := writeModel(t, "entities:\n  - name: note\n    properties:\n      - name: Body\n        type: string\n")
	_, stderr, err := execute(t, NewRootCommand, "serve", "-m", path, "--addr", "127.0.0.1:0")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, stderr, "MODEL INVALID")
}

func TestServeCommand_BadAddress(t *testing.T) {
	_, _, err := run(t, "serve", "--addr", "not-an-address")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on not-an-address")
}
