package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/mongokit/internal/core/pubsub"
)

func TestNewPublisher_NilJetStream(t *testing.T) {
	_, err := NewPublisher(context.Background(), nil, pubsub.PublisherOptions{})
	assert.Error(t, err)
}

func TestNewPublisher_EnsuresStream(t *testing.T) {
	mockJS := new(MockJetStream)
	mockJS.On("CreateOrUpdateStream", mock.Anything, mock.MatchedBy(func(cfg jetstream.StreamConfig) bool {
		return cfg.Name == "MONGOKIT" &&
			len(cfg.Subjects) == 1 && cfg.Subjects[0] == "mongokit.>" &&
			cfg.Storage == jetstream.FileStorage
	})).Return(nil, nil)

	pub, err := NewPublisher(context.Background(), mockJS, pubsub.PublisherOptions{
		StreamName:    "MONGOKIT",
		SubjectPrefix: "mongokit",
		Storage:       pubsub.FileStorage,
	})

	require.NoError(t, err)
	assert.NotNil(t, pub)
	assert.NoError(t, pub.Close())
	mockJS.AssertExpectations(t)
}

func TestNewPublisher_NoStream(t *testing.T) {
	mockJS := new(MockJetStream)

	pub, err := NewPublisher(context.Background(), mockJS, pubsub.PublisherOptions{SubjectPrefix: "mongokit"})
	require.NoError(t, err)
	assert.NotNil(t, pub)
	mockJS.AssertNotCalled(t, "CreateOrUpdateStream", mock.Anything, mock.Anything)
}

func TestNewPublisher_StreamCreationError(t *testing.T) {
	mockJS := new(MockJetStream)
	mockJS.On("CreateOrUpdateStream", mock.Anything, mock.Anything).Return(nil, errors.New("stream error"))

	_, err := NewPublisher(context.Background(), mockJS, pubsub.PublisherOptions{StreamName: "MONGOKIT"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stream error")
}

func TestPublisher_Publish(t *testing.T) {
	mockJS := new(MockJetStream)
	mockJS.On("CreateOrUpdateStream", mock.Anything, mock.Anything).Return(nil, nil)
	mockJS.On("Publish", mock.Anything, "mongokit.app.users.insertOne", []byte("hello")).Return(&jetstream.PubAck{}, nil)

	var gotSubject string
	var gotErr error
	pub, err := NewPublisher(context.Background(), mockJS, pubsub.PublisherOptions{
		StreamName:    "MONGOKIT",
		SubjectPrefix: "mongokit",
		RetryAttempts: 2,
		OnPublish: func(subject string, err error, latency time.Duration) {
			gotSubject = subject
			gotErr = err
		},
	})
	require.NoError(t, err)

	err = pub.Publish(context.Background(), "app.users.insertOne", []byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, "mongokit.app.users.insertOne", gotSubject)
	assert.NoError(t, gotErr)
	mockJS.AssertExpectations(t)
}

func TestPublisher_PublishError(t *testing.T) {
	mockJS := new(MockJetStream)
	mockJS.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("publish failed"))

	var gotErr error
	pub, err := NewPublisher(context.Background(), mockJS, pubsub.PublisherOptions{
		SubjectPrefix: "mongokit",
		OnPublish: func(subject string, err error, latency time.Duration) {
			gotErr = err
		},
	})
	require.NoError(t, err)

	err = pub.Publish(context.Background(), "app.users.insertOne", []byte("hello"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "publish failed")
	assert.Contains(t, err.Error(), "mongokit.app.users.insertOne")
	assert.Error(t, gotErr)
}
