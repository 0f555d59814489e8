package jetstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/nats-io/nats.go"
	natsjs "github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-grid-indexer/internal/adapter"
	"github.com/feral-file/ff-grid-indexer/internal/domain"
	"github.com/feral-file/ff-grid-indexer/internal/logger"
	"github.com/feral-file/ff-grid-indexer/internal/messaging"
	"github.com/feral-file/ff-grid-indexer/internal/mocks"
	"github.com/feral-file/ff-grid-indexer/internal/providers/jetstream"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

type testPublisherMocks struct {
	ctrl      *gomock.Controller
	natsJS    *mocks.MockNatsJetStream
	conn      *mocks.MockNatsConn
	js        *mocks.MockJetStream
	publisher messaging.Publisher
}

func testConfig() jetstream.Config {
	return jetstream.Config{
		URL:            "nats://localhost:4222",
		StreamName:     "GRID_EVENTS",
		Subject:        "grid.cells.changed",
		MaxReconnects:  3,
		ReconnectWait:  time.Second,
		ConnectionName: "grid-scanner-test",
		PublishRetries: 2,
		RetryInterval:  time.Millisecond,
	}
}

func setupTestPublisher(t *testing.T, jsonAdapter adapter.JSON) *testPublisherMocks {
	ctrl := gomock.NewController(t)

	tm := &testPublisherMocks{
		ctrl:   ctrl,
		natsJS: mocks.NewMockNatsJetStream(ctrl),
		conn:   mocks.NewMockNatsConn(ctrl),
		js:     mocks.NewMockJetStream(ctrl),
	}

	tm.natsJS.EXPECT().Connect("nats://localhost:4222", gomock.Any()).Return(tm.conn, tm.js, nil)
	tm.js.EXPECT().CreateOrUpdateStream(gomock.Any(), natsjs.StreamConfig{
		Name:     "GRID_EVENTS",
		Subjects: []string{"grid.cells.changed"},
	}).Return(nil, nil)

	pub, err := jetstream.NewPublisher(context.Background(), testConfig(), tm.natsJS, jsonAdapter)
	require.NoError(t, err)
	tm.publisher = pub

	return tm
}

func gridChanged() *domain.GridChanged {
	return &domain.GridChanged{
		PassID:    "2f1c6d2e-3a0b-4d5e-9f71-2b8c0e6a1d44",
		FromBlock: 2000000,
		ToBlock:   2000999,
		Cells:     []domain.Coordinate{{X: 5, Y: 10}},
	}
}

func TestNewPublisher_ConnectFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	natsJS := mocks.NewMockNatsJetStream(ctrl)
	natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil, nil, nats.ErrNoServers)

	_, err := jetstream.NewPublisher(context.Background(), testConfig(), natsJS, adapter.NewJSON())
	assert.ErrorIs(t, err, nats.ErrNoServers)
}

var errStreamConfig = errors.New("subjects overlap with an existing stream")

func TestNewPublisher_StreamFailureClosesConnection(t *testing.T) {
	ctrl := gomock.NewController(t)
	natsJS := mocks.NewMockNatsJetStream(ctrl)
	conn := mocks.NewMockNatsConn(ctrl)
	js := mocks.NewMockJetStream(ctrl)

	natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(conn, js, nil)
	js.EXPECT().CreateOrUpdateStream(gomock.Any(), gomock.Any()).Return(nil, errStreamConfig)
	conn.EXPECT().Close().Times(1)

	_, err := jetstream.NewPublisher(context.Background(), testConfig(), natsJS, adapter.NewJSON())
	assert.ErrorIs(t, err, errStreamConfig)
}

func TestNewPublisher_WithoutStreamName(t *testing.T) {
	ctrl := gomock.NewController(t)
	natsJS := mocks.NewMockNatsJetStream(ctrl)
	conn := mocks.NewMockNatsConn(ctrl)
	js := mocks.NewMockJetStream(ctrl)

	natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(conn, js, nil)

	cfg := testConfig()
	cfg.StreamName = ""
	pub, err := jetstream.NewPublisher(context.Background(), cfg, natsJS, adapter.NewJSON())
	require.NoError(t, err)
	assert.NotNil(t, pub)
}

func TestPublisher_PublishGridChanged(t *testing.T) {
	tm := setupTestPublisher(t, adapter.NewJSON())

	tm.js.EXPECT().Publish(gomock.Any(), "grid.cells.changed", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, data []byte, opts ...natsjs.PublishOpt) (*natsjs.PubAck, error) {
			var got domain.GridChanged
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, *gridChanged(), got)
			assert.Len(t, opts, 1)
			return &natsjs.PubAck{Stream: "GRID_EVENTS", Sequence: 1}, nil
		})

	require.NoError(t, tm.publisher.PublishGridChanged(context.Background(), gridChanged()))
}

func TestPublisher_RetriesTransientFailure(t *testing.T) {
	tm := setupTestPublisher(t, adapter.NewJSON())

	gomock.InOrder(
		tm.js.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nats.ErrTimeout),
		tm.js.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&natsjs.PubAck{Sequence: 2}, nil),
	)

	require.NoError(t, tm.publisher.PublishGridChanged(context.Background(), gridChanged()))
}

func TestPublisher_GivesUpAfterRetries(t *testing.T) {
	tm := setupTestPublisher(t, adapter.NewJSON())

	tm.js.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nats.ErrTimeout).Times(3)

	err := tm.publisher.PublishGridChanged(context.Background(), gridChanged())
	assert.ErrorIs(t, err, nats.ErrTimeout)
}

func TestPublisher_MarshalFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	jsonMock := mocks.NewMockJSON(ctrl)
	tm := setupTestPublisher(t, jsonMock)

	jsonMock.EXPECT().Marshal(gomock.Any()).Return(nil, errors.New("unsupported value"))
	tm.js.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	assert.Error(t, tm.publisher.PublishGridChanged(context.Background(), gridChanged()))
}

func TestPublisher_Close(t *testing.T) {
	tm := setupTestPublisher(t, adapter.NewJSON())
	tm.conn.EXPECT().Close().Times(1)

	tm.publisher.Close()
}
