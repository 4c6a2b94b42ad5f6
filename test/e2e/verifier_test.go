//go:build e2e

package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/verichain/pkg/client"
)

func TestVerifierSession_Flow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, issued := uniqueDocument(t, "diploma")
	_, err := adminClient(t).Issue(ctx, issueDiploma(uniqueStudent(t), issued))
	require.NoError(t, err)

	v := newClient("")
	s, err := v.CreateVerifierSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, client.OutcomeUnchecked, s.State.Outcome)
	assert.False(t, s.CanVerify)

	t.Run("lookup before choosing a document", func(t *testing.T) {
		_, err := v.StartLookup(ctx, s.ID)
		assertHTTPError(t, err, "VALIDATION_FAILED")
	})

	t.Run("confirmed", func(t *testing.T) {
		_, err := v.SelectDigest(ctx, s.ID, issued)
		require.NoError(t, err)
		_, err = v.StartLookup(ctx, s.ID)
		require.NoError(t, err)

		done, err := v.AwaitOutcome(ctx, s.ID, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, client.OutcomeConfirmed, done.State.Outcome)
		assert.Equal(t, issued, done.State.Digest)
		require.NotNil(t, done.State.CheckedAt)

		_, err = v.StartLookup(ctx, s.ID)
		assertHTTPError(t, err, "CONFLICT")
	})

	t.Run("new document resets the outcome", func(t *testing.T) {
		doc, _ := uniqueDocument(t, "forged")
		reset, err := v.SelectDocument(ctx, s.ID, doc)
		require.NoError(t, err)
		assert.Equal(t, client.OutcomeUnchecked, reset.State.Outcome)
		assert.Equal(t, int64(len(doc)), reset.State.Size)

		_, err = v.StartLookup(ctx, s.ID)
		require.NoError(t, err)
		done, err := v.AwaitOutcome(ctx, s.ID, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, client.OutcomeRejected, done.State.Outcome)
	})

	require.NoError(t, v.DeleteVerifierSession(ctx, s.ID))
	_, err = v.GetVerifierSession(ctx, s.ID)
	assertHTTPError(t, err, "NOT_FOUND")
}
