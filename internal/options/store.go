package options

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"elicate/internal/logger"
	"elicate/pkg/chattypes"
)

// Store resolves effective option values by merging the default, user and
// chat layers. It is the sole owner of override data.
//
// Mutations are serialized by writeMu, which stays held until every
// subscriber has been notified. Subscribers may read from the store during a
// notification but must not mutate it synchronously.
type Store struct {
	registry *Registry
	persist  *persister

	writeMu sync.Mutex

	mu      sync.RWMutex
	user    map[string]any
	chat    map[string]map[string]any
	subs    map[int]func(chattypes.Change)
	nextSub int

	// seq counts mutations; written maps a storage key to the seq of its
	// last SetOverride or ClearOverride.
	seq     uint64
	written map[string]uint64
}

// NewStore creates a store over registry. When kv is non-nil, every mutation
// is written behind to it; call Close to stop the writer.
func NewStore(registry *Registry, kv KeyValueStore) *Store {
	s := &Store{
		registry: registry,
		user:     make(map[string]any),
		chat:     make(map[string]map[string]any),
		subs:     make(map[int]func(chattypes.Change)),
		written:  make(map[string]uint64),
	}
	if kv != nil {
		s.persist = newPersister(kv)
	}
	return s
}

// Registry returns the schema registry the store resolves against.
func (s *Store) Registry() *Registry {
	return s.registry
}

func (s *Store) descriptor(groupID, optionID string) (chattypes.OptionDescriptor, error) {
	d, ok := s.registry.Lookup(groupID, optionID)
	if !ok {
		return d, &chattypes.OptionNotFoundError{Key: chattypes.OptionKey(groupID, optionID)}
	}
	return d, nil
}

// Resolve returns the effective value of groupID.optionID for chatID, walking
// Precedence top-down and skipping layers the option's scope does not permit.
func (s *Store) Resolve(groupID, optionID, chatID string) (chattypes.ResolvedOption, error) {
	d, err := s.descriptor(groupID, optionID)
	if err != nil {
		return chattypes.ResolvedOption{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.resolveLocked(d, chatID), nil
}

// ResolveWithout returns the value groupID.optionID would resolve to for
// chatID if the override at layer were cleared.
func (s *Store) ResolveWithout(groupID, optionID, chatID string, layer chattypes.Layer) (chattypes.ResolvedOption, error) {
	d, err := s.descriptor(groupID, optionID)
	if err != nil {
		return chattypes.ResolvedOption{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.resolveExcept(d, chatID, layer), nil
}

func (s *Store) resolveLocked(d chattypes.OptionDescriptor, chatID string) chattypes.ResolvedOption {
	return s.resolveExcept(d, chatID, chattypes.LayerDefault)
}

// resolveExcept walks the applicable layers, ignoring overrides at skip.
// The default layer cannot be skipped.
func (s *Store) resolveExcept(d chattypes.OptionDescriptor, chatID string, skip chattypes.Layer) chattypes.ResolvedOption {
	key := d.Key()
	for _, layer := range Precedence.Applicable(d.Scope, chatID) {
		if layer == skip && layer != chattypes.LayerDefault {
			continue
		}
		switch layer {
		case chattypes.LayerChat:
			if v, ok := s.chat[chatID][key]; ok {
				return chattypes.ResolvedOption{Value: cloneValue(v), Source: layer}
			}
		case chattypes.LayerUser:
			if v, ok := s.user[key]; ok {
				return chattypes.ResolvedOption{Value: cloneValue(v), Source: layer}
			}
		case chattypes.LayerDefault:
			return chattypes.ResolvedOption{Value: cloneValue(d.DefaultValue), Source: layer}
		}
	}
	return chattypes.ResolvedOption{Value: cloneValue(d.DefaultValue), Source: chattypes.LayerDefault}
}

func (s *Store) checkLayer(d chattypes.OptionDescriptor, layer chattypes.Layer, chatID string) error {
	if layer == chattypes.LayerDefault || !d.Scope.Permits(layer) {
		return &chattypes.InvalidScopeError{Key: d.Key(), Layer: layer, Scope: d.Scope}
	}
	if layer == chattypes.LayerChat && chatID == "" {
		return fmt.Errorf("chat layer override of %s requires a chat id", d.Key())
	}
	return nil
}

// SetOverride persists value at layer. It fails with *chattypes.InvalidScopeError
// when layer exceeds the option's declared scope, leaving prior state intact.
func (s *Store) SetOverride(groupID, optionID string, value any, layer chattypes.Layer, chatID string) error {
	d, err := s.descriptor(groupID, optionID)
	if err != nil {
		return err
	}
	if err := s.checkLayer(d, layer, chatID); err != nil {
		return err
	}
	coerced, err := coerce(d.DefaultValue, value)
	if err != nil {
		return &chattypes.InvalidValueError{Key: d.Key(), Cause: err}
	}
	encoded, err := encodeValue(coerced)
	if err != nil {
		return &chattypes.InvalidValueError{Key: d.Key(), Cause: err}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	storageKey := StorageKey(layer, groupID, optionID, chatID)
	s.mu.Lock()
	s.putLocked(d.Key(), layer, chatID, coerced)
	s.markWrittenLocked(storageKey)
	s.mu.Unlock()

	if s.persist != nil {
		s.persist.set(storageKey, encoded)
	}
	logger.OptionOperation("set", d.Key(), layer.String(), chatID)

	s.notify(chattypes.Change{GroupID: groupID, OptionID: optionID, Layer: layer, ChatID: chatID})
	return nil
}

// ClearOverride removes the value at layer so resolution falls through to the
// next layer. Clearing an absent override is a no-op.
func (s *Store) ClearOverride(groupID, optionID string, layer chattypes.Layer, chatID string) error {
	d, err := s.descriptor(groupID, optionID)
	if err != nil {
		return err
	}
	if err := s.checkLayer(d, layer, chatID); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	storageKey := StorageKey(layer, groupID, optionID, chatID)
	s.mu.Lock()
	removed := s.deleteLocked(d.Key(), layer, chatID)
	s.markWrittenLocked(storageKey)
	s.mu.Unlock()

	if s.persist != nil {
		s.persist.remove(storageKey)
	}
	if !removed {
		return nil
	}
	logger.OptionOperation("clear", d.Key(), layer.String(), chatID)

	s.notify(chattypes.Change{GroupID: groupID, OptionID: optionID, Layer: layer, ChatID: chatID, Cleared: true})
	return nil
}

func (s *Store) markWrittenLocked(storageKey string) {
	s.seq++
	s.written[storageKey] = s.seq
}

func (s *Store) putLocked(key string, layer chattypes.Layer, chatID string, v any) {
	if layer == chattypes.LayerChat {
		values, ok := s.chat[chatID]
		if !ok {
			values = make(map[string]any)
			s.chat[chatID] = values
		}
		values[key] = v
		return
	}
	s.user[key] = v
}

func (s *Store) deleteLocked(key string, layer chattypes.Layer, chatID string) bool {
	if layer == chattypes.LayerChat {
		values, ok := s.chat[chatID]
		if !ok {
			return false
		}
		if _, ok := values[key]; !ok {
			return false
		}
		delete(values, key)
		if len(values) == 0 {
			delete(s.chat, chatID)
		}
		return true
	}
	if _, ok := s.user[key]; !ok {
		return false
	}
	delete(s.user, key)
	return true
}

// Subscribe registers fn to be called synchronously after every mutation.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(chattypes.Change)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(c chattypes.Change) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	fns := make([]func(chattypes.Change), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Hydrate loads persisted user overrides, and chat overrides for chatID, for
// every option of the given groups (all groups when none are named). Pending
// writes are flushed first so that hydration never reads stale values, and
// keys written while hydration is reading keep the newer in-memory value.
// Values that cannot be decoded are skipped and reported together.
func (s *Store) Hydrate(ctx context.Context, kv KeyValueStore, chatID string, groupIDs ...string) error {
	if kv == nil {
		return nil
	}
	s.mu.RLock()
	start := s.seq
	s.mu.RUnlock()

	if err := s.Flush(ctx); err != nil {
		return err
	}

	type slot struct {
		desc   chattypes.OptionDescriptor
		layer  chattypes.Layer
		key    string
		raw    string
		exists bool
	}

	var slots []*slot
	for _, g := range s.registry.Groups(Filter{}) {
		if len(groupIDs) > 0 && !containsID(groupIDs, g.ID) {
			continue
		}
		for _, d := range g.Options {
			if d.Scope.Permits(chattypes.LayerUser) {
				slots = append(slots, &slot{desc: d, layer: chattypes.LayerUser,
					key: StorageKey(chattypes.LayerUser, d.GroupID, d.OptionID, "")})
			}
			if chatID != "" && d.Scope.Permits(chattypes.LayerChat) {
				slots = append(slots, &slot{desc: d, layer: chattypes.LayerChat,
					key: StorageKey(chattypes.LayerChat, d.GroupID, d.OptionID, chatID)})
			}
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(8)
	for _, sl := range slots {
		eg.Go(func() error {
			raw, ok, err := kv.Get(egCtx, sl.key)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", sl.key, err)
			}
			sl.raw, sl.exists = raw, ok
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var result *multierror.Error
	var changes []chattypes.Change
	s.mu.Lock()
	for _, sl := range slots {
		if !sl.exists || s.written[sl.key] > start {
			continue
		}
		v, err := decodeValue(sl.desc, sl.raw)
		if err != nil {
			result = multierror.Append(result, &chattypes.InvalidValueError{Key: sl.desc.Key(), Cause: err})
			continue
		}
		s.putLocked(sl.desc.Key(), sl.layer, chatID, v)
		changes = append(changes, chattypes.Change{
			GroupID:  sl.desc.GroupID,
			OptionID: sl.desc.OptionID,
			Layer:    sl.layer,
			ChatID:   chatID,
		})
	}
	s.mu.Unlock()

	for _, c := range changes {
		s.notify(c)
	}
	logger.Debug("Option overrides hydrated", "chat", chatID, "loaded", len(changes))

	return result.ErrorOrNil()
}

// Flush waits until all queued writes have reached the persistence layer.
func (s *Store) Flush(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	return s.persist.flush(ctx)
}

// Close drains queued writes and stops the background writer.
func (s *Store) Close() {
	if s.persist != nil {
		s.persist.close()
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
