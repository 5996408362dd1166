// Package store implements the canonical Message Store (spec.md §4.A) and the
// Stream Merger that incorporates streaming partial messages into it
// (spec.md §4.B). It is grounded on the teacher's
// runtime/agent/transcript.Ledger (ordered part accumulation with
// flush-on-boundary semantics) generalized from a single in-flight turn to a
// durable, bucketed, replayable store.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentgrove/corert/runtime/agent/convo"
	"github.com/agentgrove/corert/runtime/agent/coreerr"
)

// EventKind identifies a recorded store mutation (spec.md §4.A
// start_recording/stop_recording).
type EventKind string

const (
	// EventAdd records an Add call.
	EventAdd EventKind = "add"
	// EventAddSystem records an AddSystem call.
	EventAddSystem EventKind = "add_system"
	// EventRemoveByIDs records a RemoveByIDs call.
	EventRemoveByIDs EventKind = "remove_by_ids"
	// EventClear records a Clear call.
	EventClear EventKind = "clear"
)

// RecordedEvent is one entry in the typed mutation log used for span
// attributes and replay/tracing.
type RecordedEvent struct {
	Kind EventKind
	At   time.Time
	IDs  []string
}

// Input is anything Add can normalize into a canonical convo.Message: a plain
// string (becomes a single user text message), a partially-populated
// message, or an already-canonical message.
type Input struct {
	// ID is optional; when empty a fresh id is assigned.
	ID string
	Role       convo.Role
	Text       string
	Parts      []convo.Part
	ThreadID   string
	ResourceID string
	// CreatedAt is preserved verbatim when non-zero and Source is
	// convo.SourceMemory (spec.md §4.A "Ordering"); otherwise the store
	// assigns a strictly increasing value.
	CreatedAt time.Time
}

// Store is the canonical, per-run repository of messages plus tagged and
// untagged system messages.
//
// Store is safe for concurrent use; the Agent Loop owns one Store per run
// (spec.md §5 "The Message Store is owned by a single run").
type Store struct {
	mu sync.Mutex

	messages []*convo.Message
	byID     map[string]*convo.Message

	systemTagged   map[string]*convo.Message
	systemUntagged []*convo.Message
	systemSeen     map[string]struct{} // fingerprint de-dup

	buckets          map[convo.SourceBucket]map[string]struct{}
	persistedMemory  map[string]struct{}
	persistedResponse map[string]struct{}

	lastCreatedAt time.Time

	recording bool
	log       []RecordedEvent

	// NetworkAppend toggles the merge condition documented in spec.md §9
	// (Open Questions): "whether a memory message can receive new parts".
	NetworkAppend bool
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		byID:              make(map[string]*convo.Message),
		systemTagged:      make(map[string]*convo.Message),
		systemSeen:        make(map[string]struct{}),
		buckets: map[convo.SourceBucket]map[string]struct{}{
			convo.SourceMemory:   {},
			convo.SourceInput:    {},
			convo.SourceResponse: {},
			convo.SourceContext: {},
		},
		persistedMemory:   make(map[string]struct{}),
		persistedResponse: make(map[string]struct{}),
	}
}

// generateCreatedAt forces strictly increasing timestamps so that streaming
// floods cannot collapse into a single tick (spec.md §3 invariant 4).
func (s *Store) generateCreatedAt(preferred time.Time) time.Time {
	if preferred.IsZero() {
		preferred = time.Now().UTC()
	}
	if !preferred.After(s.lastCreatedAt) {
		preferred = s.lastCreatedAt.Add(time.Millisecond)
	}
	s.lastCreatedAt = preferred
	return preferred
}

func fingerprint(text string, parts []convo.Part) string {
	if text != "" {
		return "t:" + text
	}
	b, _ := json.Marshal(parts)
	return "p:" + string(b)
}

// Add normalizes one or more inputs and merges each into the store under the
// given source bucket (spec.md §4.A). It returns the resulting canonical
// messages (after merge, which may differ from the input if a merge target
// was found).
func (s *Store) Add(source convo.SourceBucket, inputs ...Input) ([]*convo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*convo.Message, 0, len(inputs))
	var ids []string
	for _, in := range inputs {
		msg, err := s.normalize(in, source)
		if err != nil {
			return nil, err
		}
		merged := s.mergeLocked(msg, MergeOptions{NetworkAppend: s.NetworkAppend, Source: source})
		s.indexLocked(merged, source)
		out = append(out, merged)
		ids = append(ids, merged.ID)
	}
	s.recordLocked(EventAdd, ids)
	return out, nil
}

func (s *Store) normalize(in Input, source convo.SourceBucket) (*convo.Message, error) {
	parts := in.Parts
	if in.Text != "" {
		parts = append([]convo.Part{convo.TextPart{Text: in.Text}}, parts...)
	}
	if in.Text == "" && len(in.Parts) == 0 {
		return nil, coreerr.ErrInvalidMessageContent
	}
	role := in.Role
	if role == "" {
		role = convo.RoleUser
	}
	id := in.ID
	if id == "" {
		id = convo.NewID()
	}
	createdAt := in.CreatedAt
	if source == convo.SourceMemory && !in.CreatedAt.IsZero() {
		// preserved verbatim per spec.md §4.A "Ordering"
	} else {
		createdAt = s.generateCreatedAt(in.CreatedAt)
	}
	return &convo.Message{
		ID:         id,
		Role:       role,
		CreatedAt:  createdAt,
		ThreadID:   in.ThreadID,
		ResourceID: in.ResourceID,
		Parts:      parts,
		Source:     source,
	}, nil
}

func (s *Store) indexLocked(msg *convo.Message, source convo.SourceBucket) {
	if _, exists := s.byID[msg.ID]; !exists {
		s.messages = append(s.messages, msg)
		sort.SliceStable(s.messages, func(i, j int) bool {
			return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
		})
	}
	s.byID[msg.ID] = msg
	s.buckets[source][msg.ID] = struct{}{}
}

// AddSystem appends a system message to either the tagged or untagged list,
// de-duplicating by content fingerprint (spec.md §4.A). System messages
// sourced from memory are silently dropped (spec.md §4.A failure mode:
// "historical data may contain accidental system messages").
func (s *Store) AddSystem(text string, tag string, source convo.SourceBucket) {
	if source == convo.SourceMemory {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := fingerprint(text, nil)
	if _, seen := s.systemSeen[fp]; seen {
		return
	}
	s.systemSeen[fp] = struct{}{}

	msg := &convo.Message{
		ID:        convo.NewID(),
		Role:      convo.RoleSystem,
		CreatedAt: s.generateCreatedAt(time.Time{}),
		Parts:     []convo.Part{convo.TextPart{Text: text}},
		Source:    source,
	}
	if tag != "" {
		s.systemTagged[tag] = msg
	} else {
		s.systemUntagged = append(s.systemUntagged, msg)
	}
	s.recordLocked(EventAddSystem, []string{msg.ID})
}

// RemoveByIDs removes matching messages from all source buckets.
func (s *Store) RemoveByIDs(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	kept := s.messages[:0:0]
	for _, m := range s.messages {
		if _, ok := remove[m.ID]; ok {
			delete(s.byID, m.ID)
			for _, b := range s.buckets {
				delete(b, m.ID)
			}
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	s.recordLocked(EventRemoveByIDs, ids)
}

// Clear removes every message and system message from the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.byID = make(map[string]*convo.Message)
	s.systemTagged = make(map[string]*convo.Message)
	s.systemUntagged = nil
	s.systemSeen = make(map[string]struct{})
	for k := range s.buckets {
		s.buckets[k] = map[string]struct{}{}
	}
	s.recordLocked(EventClear, nil)
}

func (s *Store) recordLocked(kind EventKind, ids []string) {
	if !s.recording {
		return
	}
	s.log = append(s.log, RecordedEvent{Kind: kind, At: time.Now().UTC(), IDs: ids})
}

// StartRecording begins capturing a typed mutation log.
func (s *Store) StartRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = true
	s.log = nil
}

// StopRecording stops capturing and returns the recorded log.
func (s *Store) StopRecording() []RecordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
	out := s.log
	s.log = nil
	return out
}

func (s *Store) bucketMessagesLocked(bucket convo.SourceBucket) []*convo.Message {
	ids := s.buckets[bucket]
	out := make([]*convo.Message, 0, len(ids))
	for _, m := range s.messages {
		if _, ok := ids[m.ID]; ok {
			out = append(out, m)
		}
	}
	return out
}

// All returns every message currently stored, across all buckets, ordered by
// CreatedAt.
func (s *Store) All() []*convo.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*convo.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Remembered returns the messages in the memory bucket.
func (s *Store) Remembered() []*convo.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bucketMessagesLocked(convo.SourceMemory)
}

// Input returns the messages in the input bucket.
func (s *Store) Input() []*convo.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bucketMessagesLocked(convo.SourceInput)
}

// Response returns the messages in the response bucket.
func (s *Store) Response() []*convo.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bucketMessagesLocked(convo.SourceResponse)
}

// MarkPersisted records that the given response-bucket message ids have been
// drained for persistence, so repeated calls to Response for post-run
// persistence do not re-save already-persisted messages. This realizes the
// "persisted mirrors" of spec.md §4.A.
func (s *Store) MarkPersisted(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.buckets[convo.SourceMemory][id]; ok {
			s.persistedMemory[id] = struct{}{}
		}
		if _, ok := s.buckets[convo.SourceResponse][id]; ok {
			s.persistedResponse[id] = struct{}{}
		}
	}
}

// Unpersisted returns the response-bucket messages that have not yet been
// marked persisted.
func (s *Store) Unpersisted() []*convo.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.bucketMessagesLocked(convo.SourceResponse)
	out := make([]*convo.Message, 0, len(all))
	for _, m := range all {
		if _, done := s.persistedResponse[m.ID]; !done {
			out = append(out, m)
		}
	}
	return out
}

// snapshot is the serialized, round-trippable state of a Store (spec.md §8
// "Round-trip").
type snapshot struct {
	Messages       []*convo.Message
	SystemTagged   map[string]*convo.Message
	SystemUntagged []*convo.Message
	Buckets        map[convo.SourceBucket][]string
	LastCreatedAt  time.Time
}

// Serialize captures the full store state for round-tripping.
func (s *Store) Serialize() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		Messages:       s.messages,
		SystemTagged:   s.systemTagged,
		SystemUntagged: s.systemUntagged,
		Buckets:        make(map[convo.SourceBucket][]string, len(s.buckets)),
		LastCreatedAt:  s.lastCreatedAt,
	}
	for bucket, ids := range s.buckets {
		list := make([]string, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		sort.Strings(list)
		snap.Buckets[bucket] = list
	}
	return json.Marshal(snap)
}

// Deserialize restores a Store from a prior Serialize call. Restored stores
// are observationally equal to the source: same messages, same bucket
// memberships, same system message tags.
func Deserialize(data []byte) (*Store, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("store: deserialize: %w", err)
	}
	s := New()
	s.messages = snap.Messages
	s.lastCreatedAt = snap.LastCreatedAt
	for _, m := range s.messages {
		s.byID[m.ID] = m
	}
	if snap.SystemTagged != nil {
		s.systemTagged = snap.SystemTagged
	}
	s.systemUntagged = snap.SystemUntagged
	for bucket, ids := range snap.Buckets {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		s.buckets[bucket] = set
	}
	return s, nil
}
