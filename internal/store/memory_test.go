package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ReadAbsent(t *testing.T) {
	s := NewMemoryStore()

	value, ok, err := s.Read(context.Background(), PathAdminSettings)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestMemoryStore_WriteRead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	doc := map[string]any{"siteName": "ES.mn", "isStreamActive": true}
	require.NoError(t, s.Write(ctx, PathAdminSettings, doc))

	value, ok, err := s.Read(ctx, PathAdminSettings)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, doc, value)

	// Children of a map write are individually addressable.
	name, ok, err := s.Read(ctx, PathAdminSettings+"/siteName")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ES.mn", name)
}

func TestMemoryStore_WriteReplacesSubtree(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, ChildPath(PathChatMessages, "a"), map[string]any{"message": "hi"}))
	require.NoError(t, s.Write(ctx, ChildPath(PathChatMessages, "b"), map[string]any{"message": "yo"}))

	// A full-document write at the collection root wipes prior children.
	require.NoError(t, s.Write(ctx, PathChatMessages, map[string]any{}))

	value, ok, err := s.Read(ctx, PathChatMessages)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, value)
}

func TestMemoryStore_NullSentinelRemoves(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	path := ChildPath(PathChatMessages, "msg1")
	require.NoError(t, s.Write(ctx, path, map[string]any{"message": "hi"}))
	require.NoError(t, s.Write(ctx, path, nil))

	_, ok, err := s.Read(ctx, path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_CollectionAssembly(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, ChildPath(PathChatMessages, "a"), map[string]any{"message": "one"}))
	require.NoError(t, s.Write(ctx, ChildPath(PathChatMessages, "b"), map[string]any{"message": "two"}))

	value, ok, err := s.Read(ctx, PathChatMessages)
	require.NoError(t, err)
	require.True(t, ok)

	coll, isMap := value.(map[string]any)
	require.True(t, isMap)
	assert.Len(t, coll, 2)
	assert.Equal(t, map[string]any{"message": "one"}, coll["a"])
}

func TestMemoryStore_SubscribeFiresImmediately(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, PathAdminSettings, map[string]any{"siteName": "ES.mn"}))

	var got []any
	sub, err := s.Subscribe(ctx, PathAdminSettings, func(value any) {
		got = append(got, value)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"siteName": "ES.mn"}, got[0])
}

func TestMemoryStore_SubscribeSeesChildWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var snapshots []any
	sub, err := s.Subscribe(ctx, PathChatMessages, func(value any) {
		snapshots = append(snapshots, value)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, s.Write(ctx, ChildPath(PathChatMessages, "a"), map[string]any{"message": "hi"}))

	require.Len(t, snapshots, 2)
	assert.Nil(t, snapshots[0]) // initial fire with absent collection
	coll, ok := snapshots[1].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, coll, "a")
}

func TestMemoryStore_UnsubscribeStopsDelivery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	fired := 0
	sub, err := s.Subscribe(ctx, PathAdminSettings, func(any) { fired++ })
	require.NoError(t, err)
	require.Equal(t, 1, fired)

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	require.NoError(t, s.Write(ctx, PathAdminSettings, map[string]any{"siteName": "x"}))
	assert.Equal(t, 1, fired)
}

func TestMemoryStore_SelfWriteObserved(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var last any
	sub, err := s.Subscribe(ctx, PathAdminSettings, func(value any) { last = value })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, s.Write(ctx, PathAdminSettings, map[string]any{"siteName": "mine"}))
	assert.Equal(t, map[string]any{"siteName": "mine"}, last)
}
