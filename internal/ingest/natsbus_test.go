package ingest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/arkohut/screenmemory/internal/logging"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subj string, data []byte) error {
	f.subject = subj
	f.data = data
	return f.err
}

func TestNATSNotifier_Publish_EncodesEventToSubject(t *testing.T) {
	fp := &fakePublisher{}
	n := &NATSNotifier{pub: fp, subject: "screenmemory.entities", log: logging.NewTestLogger().Logger}

	n.Publish(context.Background(), EntityReady{EntityID: 42, Filepath: "/a/b.png", IsNew: true})

	require.Equal(t, "screenmemory.entities.42", fp.subject)

	var got EntityReady
	require.NoError(t, json.Unmarshal(fp.data, &got))
	require.Equal(t, int64(42), got.EntityID)
	require.True(t, got.IsNew)
}

func TestNATSNotifier_Publish_SwallowsPublishError(t *testing.T) {
	fp := &fakePublisher{err: context.DeadlineExceeded}
	n := &NATSNotifier{pub: fp, subject: "screenmemory.entities", log: logging.NewTestLogger().Logger}

	require.NotPanics(t, func() {
		n.Publish(context.Background(), EntityReady{EntityID: 1})
	})
}
