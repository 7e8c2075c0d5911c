package transfer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deletionTask() DeletionTask {
	return DeletionTask{PartID: "part-7", OwnerID: "acc-2", LogicalName: "acc-2/part-7", Offset: 2048, Size: 1024}
}

func TestDeletionPipeline(t *testing.T) {
	t.Run("ExistingPartIsAcked", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.parts["part-7"] = deletionTask().Part()
		p := NewDeletionPipeline(NewCompensationManager(catalog, nil))

		r := p.Process(context.Background(), deletionTask())

		assert.Equal(t, Ack, r.Outcome)
		assert.Equal(t, StateDone, r.State)
		assert.NoError(t, r.Err)
		assert.NotContains(t, catalog.parts, "part-7")
		require.Len(t, catalog.deleted, 1)
		assert.Equal(t, deletionTask().Part(), catalog.deleted[0])
	})

	t.Run("RejectedDeleteIsRequeued", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.deleteOK = false
		catalog.parts["part-7"] = deletionTask().Part()
		p := NewDeletionPipeline(NewCompensationManager(catalog, nil))

		r := p.Process(context.Background(), deletionTask())

		assert.Equal(t, Requeue, r.Outcome)
		assert.ErrorIs(t, r.Err, ErrCompensationRejected)
		assert.Contains(t, catalog.parts, "part-7")
	})

	t.Run("TransportErrorIsRequeued", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.deleteErr = errNetwork
		p := NewDeletionPipeline(NewCompensationManager(catalog, nil))

		r := p.Process(context.Background(), deletionTask())

		assert.Equal(t, Requeue, r.Outcome)
		assert.Equal(t, StateRequeued, r.State)
		assert.ErrorIs(t, r.Err, ErrTransient)
	})
}

func TestCompensationManagerDistinguishesRejection(t *testing.T) {
	catalog := newFakeCatalog()
	c := NewCompensationManager(catalog, nil)

	catalog.deleteOK = false
	err := c.DeletePart(context.Background(), deletionTask().Part())
	assert.ErrorIs(t, err, ErrCompensationRejected)
	assert.NotErrorIs(t, err, ErrTransient)

	catalog.deleteOK = true
	catalog.deleteErr = errNetwork
	err = c.DeletePart(context.Background(), deletionTask().Part())
	assert.ErrorIs(t, err, ErrTransient)
	assert.NotErrorIs(t, err, ErrCompensationRejected)

	catalog.deleteErr = nil
	assert.NoError(t, c.DeletePart(context.Background(), deletionTask().Part()))
}

// deletingDestination is a destination that also owns deletion of its
// objects.
type deletingDestination struct {
	*fakeDestination
	deleteErr error
	deleted   []StoredPart
}

func (d *deletingDestination) Delete(_ context.Context, part StoredPart) error {
	if d.deleteErr != nil {
		return d.deleteErr
	}
	d.deleted = append(d.deleted, part)
	return nil
}

func TestCompensationManagerDeletesFromDestination(t *testing.T) {
	t.Run("DestinationThenCatalog", func(t *testing.T) {
		catalog := newFakeCatalog()
		dest := &deletingDestination{fakeDestination: newFakeDestination()}
		p := NewDeletionPipeline(NewCompensationManager(catalog, dest))

		r := p.Process(context.Background(), deletionTask())

		assert.Equal(t, Ack, r.Outcome)
		assert.Equal(t, []StoredPart{deletionTask().Part()}, dest.deleted)
		assert.Len(t, catalog.deleted, 1)
	})

	t.Run("DestinationFailureSkipsCatalog", func(t *testing.T) {
		catalog := newFakeCatalog()
		dest := &deletingDestination{fakeDestination: newFakeDestination(), deleteErr: errNetwork}
		p := NewDeletionPipeline(NewCompensationManager(catalog, dest))

		r := p.Process(context.Background(), deletionTask())

		assert.Equal(t, Requeue, r.Outcome)
		assert.ErrorIs(t, r.Err, ErrTransient)
		assert.Empty(t, catalog.deleted)
	})

	t.Run("PlainUploaderIsNotADeleter", func(t *testing.T) {
		c := NewCompensationManager(newFakeCatalog(), newFakeDestination())
		assert.Nil(t, c.deleter)
	})
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ack", Ack.String())
	assert.Equal(t, "drop", Drop.String())
	assert.Equal(t, "requeue", Requeue.String())
	assert.Equal(t, "unknown", Outcome(9).String())
}
