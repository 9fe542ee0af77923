package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadeforge/arcadeforge/internal/content"
)

func game(id string, tags ...string) *content.GameRecord {
	return &content.GameRecord{ID: id, Title: id, Tags: tags}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewGameRegistry()
	r.Register(game("pong"))

	got, ok := r.Get("pong")
	require.True(t, ok)
	assert.Equal(t, "pong", got.ID)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestAll_SortedRegardlessOfInsertionOrder(t *testing.T) {
	r := NewGameRegistry()
	r.Register(game("zebra"))
	r.Register(game("alpha"))
	r.Register(game("mango"))

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].ID)
	assert.Equal(t, "mango", all[1].ID)
	assert.Equal(t, "zebra", all[2].ID)
}

func TestRegister_UpdateReplacesRecord(t *testing.T) {
	r := NewGameRegistry()
	r.Register(&content.GameRecord{ID: "pong", Title: "Pong"})
	r.Register(&content.GameRecord{ID: "pong", Title: "Pong Deluxe"})

	assert.Equal(t, 1, r.Count())
	got, _ := r.Get("pong")
	assert.Equal(t, "Pong Deluxe", got.Title)
}

func TestRemove(t *testing.T) {
	r := NewGameRegistry()
	r.Register(game("pong"))
	r.Remove("pong")
	r.Remove("pong") // no-op on absent id

	assert.Equal(t, 0, r.Count())
}

func TestRelated_TagOverlapFirst(t *testing.T) {
	r := NewGameRegistry()
	r.Register(game("snake", "classic"))
	r.Register(game("pong", "classic", "sports"))
	r.Register(game("tetris", "puzzle"))
	r.Register(game("breakout", "classic"))

	related := r.Related("pong", 2)
	require.Len(t, related, 2)
	assert.Equal(t, "breakout", related[0].ID)
	assert.Equal(t, "snake", related[1].ID)
}

func TestRelated_FillsFromRemainder(t *testing.T) {
	r := NewGameRegistry()
	r.Register(game("solo", "unique"))
	r.Register(game("a"))
	r.Register(game("b"))

	related := r.Related("solo", 3)
	require.Len(t, related, 2)
	assert.Equal(t, "a", related[0].ID)
	assert.Equal(t, "b", related[1].ID)
}

func TestRelated_Deterministic(t *testing.T) {
	build := func(order []string) []string {
		r := NewGameRegistry()
		for _, id := range order {
			r.Register(game(id, "arcade"))
		}
		var ids []string
		for _, g := range r.Related("g3", 4) {
			ids = append(ids, g.ID)
		}
		return ids
	}

	first := build([]string{"g1", "g2", "g3", "g4", "g5"})
	second := build([]string{"g5", "g3", "g1", "g4", "g2"})
	assert.Equal(t, first, second)
}

func TestWatch_ReceivesEvents(t *testing.T) {
	r := NewGameRegistry()
	ch := r.Watch()

	r.Register(game("pong"))

	select {
	case event := <-ch:
		assert.Equal(t, EventTypeAdded, event.Type)
		assert.Equal(t, "pong", event.Game.ID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	r.UnWatch(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestConcurrentAccess(t *testing.T) {
	r := NewGameRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("game-%d-%d", n, j)
				r.Register(game(id))
				r.Get(id)
				r.All()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16*50, r.Count())
}
