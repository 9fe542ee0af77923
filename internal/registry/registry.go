// Package registry holds the validated game records for a site build. It
// is the handoff point between extraction and scheduling: the extractor
// registers records as they pass validation, and the planner reads them
// back in deterministic id order.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/arcadeforge/arcadeforge/internal/content"
)

// GameRegistry manages the validated game records of one site build.
type GameRegistry struct {
	games    map[string]*content.GameRecord
	mutex    sync.RWMutex
	watchers []chan GameEvent
}

// GameEvent represents a change in the game registry.
type GameEvent struct {
	Type      EventType
	Game      *content.GameRecord
	Timestamp time.Time
}

// EventType represents the type of game event.
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

// String names the event type for logs.
func (t EventType) String() string {
	switch t {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	}
	return "unknown"
}

// NewGameRegistry creates an empty game registry.
func NewGameRegistry() *GameRegistry {
	return &GameRegistry{
		games:    make(map[string]*content.GameRecord),
		watchers: make([]chan GameEvent, 0),
	}
}

// Register adds or updates a game record.
func (r *GameRegistry) Register(game *content.GameRecord) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := EventTypeAdded
	if _, exists := r.games[game.ID]; exists {
		eventType = EventTypeUpdated
	}

	r.games[game.ID] = game

	r.notify(GameEvent{
		Type:      eventType,
		Game:      game,
		Timestamp: time.Now(),
	})
}

// Get retrieves a game record by id.
func (r *GameRegistry) Get(id string) (*content.GameRecord, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	game, exists := r.games[id]
	return game, exists
}

// All returns every registered record sorted by game id. Scheduling and
// artifact generation iterate this slice, so the order must not depend
// on registration order.
func (r *GameRegistry) All() []*content.GameRecord {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*content.GameRecord, 0, len(r.games))
	for _, game := range r.games {
		result = append(result, game)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// Related returns up to n other games sharing at least one tag with the
// given game, sorted by id, falling back to the first games overall when
// tag overlap leaves slots unfilled.
func (r *GameRegistry) Related(id string, n int) []*content.GameRecord {
	if n <= 0 {
		return nil
	}

	all := r.All()

	var tagged, rest []*content.GameRecord
	source, _ := r.Get(id)
	for _, game := range all {
		if game.ID == id {
			continue
		}
		if source != nil && sharesTag(source.Tags, game.Tags) {
			tagged = append(tagged, game)
		} else {
			rest = append(rest, game)
		}
	}

	result := append(tagged, rest...)
	if len(result) > n {
		result = result[:n]
	}

	return result
}

// Remove removes a game record from the registry.
func (r *GameRegistry) Remove(id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	game, exists := r.games[id]
	if !exists {
		return
	}

	delete(r.games, id)

	r.notify(GameEvent{
		Type:      EventTypeRemoved,
		Game:      game,
		Timestamp: time.Now(),
	})
}

// Watch returns a channel that receives game events.
func (r *GameRegistry) Watch() <-chan GameEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan GameEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it.
func (r *GameRegistry) UnWatch(ch <-chan GameEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered games.
func (r *GameRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.games)
}

// notify must be called with the write lock held.
func (r *GameRegistry) notify(event GameEvent) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

func sharesTag(a, b []string) bool {
	for _, ta := range a {
		for _, tb := range b {
			if ta == tb {
				return true
			}
		}
	}
	return false
}
