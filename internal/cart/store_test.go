package cart

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "cart:test"

func burger() domain.CartLineItem {
	return domain.CartLineItem{ItemID: "m1", Name: "Burger", UnitPrice: decimal.NewFromInt(10), ImageRef: "burger.png"}
}

func fries() domain.CartLineItem {
	return domain.CartLineItem{ItemID: "m2", Name: "Fries", UnitPrice: decimal.NewFromInt(5)}
}

func openStore(t *testing.T, st storage.Store) *Store {
	t.Helper()
	s, err := Open(context.Background(), st, testKey)
	require.NoError(t, err)
	return s
}

func TestAddItem_AppendsThenMerges(t *testing.T) {
	s := openStore(t, NewMockStorage())
	ctx := context.Background()

	require.NoError(t, s.AddItem(ctx, burger()))
	require.NoError(t, s.AddItem(ctx, fries()))
	require.NoError(t, s.AddItem(ctx, burger()))

	c := s.Snapshot()
	require.Len(t, c.Items, 2)
	assert.Equal(t, "m1", c.Items[0].ItemID)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 1, c.Items[1].Quantity)
}

func TestAddItem_IgnoresIncomingQuantity(t *testing.T) {
	s := openStore(t, NewMockStorage())
	item := burger()
	item.Quantity = 7

	require.NoError(t, s.AddItem(context.Background(), item))
	assert.Equal(t, 1, s.Snapshot().Items[0].Quantity)
}

func TestAddItem_RejectsInvalid(t *testing.T) {
	s := openStore(t, NewMockStorage())
	ctx := context.Background()

	err := s.AddItem(ctx, domain.CartLineItem{Name: "no id", UnitPrice: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrInvalidItem)

	neg := burger()
	neg.UnitPrice = decimal.NewFromInt(-1)
	assert.ErrorIs(t, s.AddItem(ctx, neg), ErrInvalidItem)
	assert.True(t, s.Snapshot().IsEmpty())
}

func TestDecrement_RemovesLineAtOne(t *testing.T) {
	s := openStore(t, NewMockStorage())
	ctx := context.Background()
	require.NoError(t, s.AddItem(ctx, burger()))
	require.NoError(t, s.Increment(ctx, "m1"))

	require.NoError(t, s.Decrement(ctx, "m1"))
	assert.Equal(t, 1, s.Snapshot().Items[0].Quantity)

	require.NoError(t, s.Decrement(ctx, "m1"))
	assert.True(t, s.Snapshot().IsEmpty())
}

func TestSetQuantity(t *testing.T) {
	s := openStore(t, NewMockStorage())
	ctx := context.Background()
	require.NoError(t, s.AddItem(ctx, burger()))

	require.NoError(t, s.SetQuantity(ctx, "m1", 4))
	assert.Equal(t, 4, s.Snapshot().Items[0].Quantity)

	require.NoError(t, s.SetQuantity(ctx, "m1", 0))
	assert.True(t, s.Snapshot().IsEmpty())

	assert.ErrorIs(t, s.SetQuantity(ctx, "missing", 2), ErrItemNotFound)
}

func TestUnknownItemOperations(t *testing.T) {
	s := openStore(t, NewMockStorage())
	ctx := context.Background()

	assert.ErrorIs(t, s.RemoveItem(ctx, "x"), ErrItemNotFound)
	assert.ErrorIs(t, s.Increment(ctx, "x"), ErrItemNotFound)
	assert.ErrorIs(t, s.Decrement(ctx, "x"), ErrItemNotFound)
}

func TestQuantityNeverDropsToZero(t *testing.T) {
	s := openStore(t, NewMockStorage())
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	catalog := []domain.CartLineItem{burger(), fries(), {ItemID: "m3", Name: "Soda", UnitPrice: decimal.RequireFromString("1.50")}}

	for i := 0; i < 2000; i++ {
		item := catalog[rng.Intn(len(catalog))]
		var err error
		switch rng.Intn(4) {
		case 0:
			err = s.AddItem(ctx, item)
		case 1:
			err = s.RemoveItem(ctx, item.ItemID)
		case 2:
			err = s.Increment(ctx, item.ItemID)
		case 3:
			err = s.Decrement(ctx, item.ItemID)
		}
		if err != nil {
			require.ErrorIs(t, err, ErrItemNotFound)
		}

		seen := map[string]bool{}
		for _, line := range s.Snapshot().Items {
			require.Greater(t, line.Quantity, 0, "step %d", i)
			require.False(t, seen[line.ItemID], "duplicate line %s", line.ItemID)
			seen[line.ItemID] = true
		}
	}
}

func TestPersistReloadRoundTrip(t *testing.T) {
	st := NewMockStorage()
	ctx := context.Background()
	s := openStore(t, st)

	for i := 0; i < 10; i++ {
		item := domain.CartLineItem{
			ItemID:    fmt.Sprintf("m%d", i),
			Name:      fmt.Sprintf("Dish %d", i),
			UnitPrice: decimal.RequireFromString("3.25").Add(decimal.NewFromInt(int64(i))),
		}
		require.NoError(t, s.AddItem(ctx, item))
		if i%3 == 0 {
			require.NoError(t, s.Increment(ctx, item.ItemID))
		}
	}

	reloaded := openStore(t, st)

	want := map[string]domain.CartLineItem{}
	for _, l := range s.Snapshot().Items {
		want[l.ItemID] = l
	}
	got := reloaded.Snapshot().Items
	require.Len(t, got, len(want))
	for _, l := range got {
		w, ok := want[l.ItemID]
		require.True(t, ok)
		assert.Equal(t, w.Quantity, l.Quantity)
		assert.Equal(t, w.Name, l.Name)
		assert.True(t, w.UnitPrice.Equal(l.UnitPrice))
	}
}

func TestOpen_CorruptRecordIsPurged(t *testing.T) {
	st := NewMockStorage()
	ctx := context.Background()
	require.NoError(t, st.MemoryStore.Put(ctx, testKey, []byte("{not json")))

	s := openStore(t, st)
	assert.True(t, s.Snapshot().IsEmpty())

	_, err := st.Get(ctx, testKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOpen_DropsNonPositiveLines(t *testing.T) {
	st := NewMockStorage()
	ctx := context.Background()
	raw := `{"items":[{"itemId":"m1","name":"Burger","price":"10","quantity":0},{"itemId":"m2","name":"Fries","price":"5","quantity":2}]}`
	require.NoError(t, st.MemoryStore.Put(ctx, testKey, []byte(raw)))

	c := openStore(t, st).Snapshot()
	require.Len(t, c.Items, 1)
	assert.Equal(t, "m2", c.Items[0].ItemID)
}

func TestOpen_StorageErrorIsReturned(t *testing.T) {
	_, err := Open(context.Background(), &failingGetStorage{MemoryStore: storage.NewMemoryStore()}, testKey)
	assert.Error(t, err)
}

type failingGetStorage struct {
	*storage.MemoryStore
}

func (f *failingGetStorage) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestMutation_PersistFailureKeepsState(t *testing.T) {
	st := NewMockStorage()
	ctx := context.Background()
	s := openStore(t, st)
	require.NoError(t, s.AddItem(ctx, burger()))

	st.PutErr = errors.New("disk full")
	err := s.Increment(ctx, "m1")
	require.Error(t, err)
	assert.Equal(t, 1, s.Snapshot().Items[0].Quantity)

	err = s.AddItem(ctx, fries())
	require.Error(t, err)
	assert.Len(t, s.Snapshot().Items, 1)
}

func TestClear_DeletesRecord(t *testing.T) {
	st := NewMockStorage()
	ctx := context.Background()
	s := openStore(t, st)
	require.NoError(t, s.AddItem(ctx, burger()))

	require.NoError(t, s.Clear(ctx))
	assert.True(t, s.Snapshot().IsEmpty())
	_, err := st.Get(ctx, testKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClear_DeleteFailureKeepsItems(t *testing.T) {
	st := NewMockStorage()
	ctx := context.Background()
	s := openStore(t, st)
	require.NoError(t, s.AddItem(ctx, burger()))

	st.DeleteErr = errors.New("timeout")
	require.Error(t, s.Clear(ctx))
	assert.Len(t, s.Snapshot().Items, 1)
}

func TestReplaceAll_MergesAndFilters(t *testing.T) {
	s := openStore(t, NewMockStorage())
	ctx := context.Background()
	require.NoError(t, s.AddItem(ctx, fries()))

	b := burger()
	b.Quantity = 2
	dup := burger()
	dup.Quantity = 1
	zero := fries()
	zero.Quantity = 0

	require.NoError(t, s.ReplaceAll(ctx, []domain.CartLineItem{b, zero, dup}))

	c := s.Snapshot()
	require.Len(t, c.Items, 1)
	assert.Equal(t, "m1", c.Items[0].ItemID)
	assert.Equal(t, 3, c.Items[0].Quantity)
}

func TestReplaceAll_RejectsMissingID(t *testing.T) {
	s := openStore(t, NewMockStorage())
	err := s.ReplaceAll(context.Background(), []domain.CartLineItem{{Name: "x", Quantity: 1}})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := openStore(t, NewMockStorage())
	ctx := context.Background()
	require.NoError(t, s.AddItem(ctx, burger()))

	c := s.Snapshot()
	c.Items[0].Quantity = 99
	assert.Equal(t, 1, s.Snapshot().Items[0].Quantity)
}

func TestSubscribe(t *testing.T) {
	s := openStore(t, NewMockStorage())
	ctx := context.Background()

	var seen []int
	unsubscribe := s.Subscribe(func(c domain.Cart) {
		seen = append(seen, c.TotalQuantity())
	})

	require.NoError(t, s.AddItem(ctx, burger()))
	require.NoError(t, s.AddItem(ctx, burger()))
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, []int{1, 2, 0}, seen)

	unsubscribe()
	require.NoError(t, s.AddItem(ctx, burger()))
	assert.Len(t, seen, 3)
}

func TestSubscribe_NotCalledOnFailure(t *testing.T) {
	st := NewMockStorage()
	s := openStore(t, st)

	calls := 0
	s.Subscribe(func(domain.Cart) { calls++ })

	st.PutErr = errors.New("boom")
	require.Error(t, s.AddItem(context.Background(), burger()))
	assert.Zero(t, calls)
}
