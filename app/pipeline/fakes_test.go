package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avoronov/newsmux/app/channel"
	"github.com/avoronov/newsmux/app/database"
	"github.com/avoronov/newsmux/app/oracle"
	"github.com/avoronov/newsmux/app/source"
)

type fakeIngestedRepo struct {
	mu    sync.Mutex
	items map[string]database.IngestedItem
}

func newFakeIngestedRepo() *fakeIngestedRepo {
	return &fakeIngestedRepo{items: make(map[string]database.IngestedItem)}
}

func (r *fakeIngestedRepo) ExistingKeys(channelID string, guids []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]bool, len(guids))
	for _, guid := range guids {
		want[guid] = true
	}
	existing := make(map[string]bool)
	for _, item := range r.items {
		if item.ChannelID == channelID && want[item.SourceGUID] {
			existing[item.SourceGUID] = true
		}
	}
	return existing, nil
}

func (r *fakeIngestedRepo) InsertBatch(items []database.IngestedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		r.items[item.ID] = item
	}
	return nil
}

func (r *fakeIngestedRepo) GetByState(state database.IngestedState, limit int) ([]database.IngestedItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []database.IngestedItem
	for _, item := range r.items {
		if item.State == state && !item.Filtered {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostedAt.Before(out[j].PostedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeIngestedRepo) GetByIDs(ids []string) (map[string]database.IngestedItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]database.IngestedItem)
	for _, id := range ids {
		if item, ok := r.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (r *fakeIngestedRepo) GetByOutgoingIDs(outgoingIDs []string) (map[string][]database.IngestedItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]bool, len(outgoingIDs))
	for _, id := range outgoingIDs {
		want[id] = true
	}
	out := make(map[string][]database.IngestedItem)
	for _, item := range r.items {
		if item.OutgoingID != nil && want[*item.OutgoingID] {
			out[*item.OutgoingID] = append(out[*item.OutgoingID], item)
		}
	}
	for id := range out {
		group := out[id]
		sort.Slice(group, func(i, j int) bool { return group[i].PostedAt.Before(group[j].PostedAt) })
		out[id] = group
	}
	return out, nil
}

func (r *fakeIngestedRepo) CountByState() (map[database.IngestedState]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[database.IngestedState]int)
	for _, item := range r.items {
		out[item.State]++
	}
	return out, nil
}

func (r *fakeIngestedRepo) UpdateCleaned(item database.IngestedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[item.ID]
	if !ok || stored.State != database.IngestedStateIngested {
		return nil
	}
	stored.Text = item.Text
	stored.URLs = item.URLs
	stored.Tags = item.Tags
	stored.Filtered = item.Filtered
	stored.FilterReason = item.FilterReason
	stored.State = database.IngestedStateCleaned
	r.items[item.ID] = stored
	return nil
}

func (r *fakeIngestedRepo) UpdateSummarized(item database.IngestedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[item.ID]
	if !ok || stored.State != database.IngestedStateCleaned {
		return nil
	}
	stored.Summary = item.Summary
	stored.Headline = item.Headline
	stored.Tags = item.Tags
	stored.Error = ""
	stored.State = database.IngestedStateSummarized
	r.items[item.ID] = stored
	return nil
}

func (r *fakeIngestedRepo) MarkError(id string, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[id]
	if !ok || stored.State != database.IngestedStateCleaned {
		return nil
	}
	stored.Error = errMsg
	stored.State = database.IngestedStateError
	r.items[id] = stored
	return nil
}

func (r *fakeIngestedRepo) LinkToOutgoing(id string, outgoingID string, state database.IngestedState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[id]
	if !ok || stored.State != database.IngestedStateSummarized {
		return fmt.Errorf("item %s is not summarized", id)
	}
	stored.OutgoingID = &outgoingID
	stored.State = state
	r.items[id] = stored
	return nil
}

func (r *fakeIngestedRepo) RetryError(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[id]
	if !ok || stored.State != database.IngestedStateError {
		return fmt.Errorf("item %s is not in error state", id)
	}
	stored.Error = ""
	stored.State = database.IngestedStateCleaned
	r.items[id] = stored
	return nil
}

func (r *fakeIngestedRepo) get(id string) database.IngestedItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id]
}

func (r *fakeIngestedRepo) all() []database.IngestedItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []database.IngestedItem
	for _, item := range r.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostedAt.Before(out[j].PostedAt) })
	return out
}

type fakeOutgoingRepo struct {
	mu    sync.Mutex
	items map[string]database.OutgoingItem
}

func newFakeOutgoingRepo() *fakeOutgoingRepo {
	return &fakeOutgoingRepo{items: make(map[string]database.OutgoingItem)}
}

func (r *fakeOutgoingRepo) Insert(item database.OutgoingItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.CreatedAt = time.Now()
	r.items[item.ID] = item
	return nil
}

func (r *fakeOutgoingRepo) GetByStates(states []database.OutgoingState) ([]database.OutgoingItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[database.OutgoingState]bool, len(states))
	for _, state := range states {
		want[state] = true
	}
	var out []database.OutgoingItem
	for _, item := range r.items {
		if want[item.State] {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageDttm.Before(out[j].MessageDttm) })
	return out, nil
}

func (r *fakeOutgoingRepo) GetForDedup(since time.Time) ([]database.OutgoingItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []database.OutgoingItem
	for _, item := range r.items {
		if !item.MessageDttm.Before(since) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageDttm.Before(out[j].MessageDttm) })
	return out, nil
}

func (r *fakeOutgoingRepo) GetSentSince(since time.Time) ([]database.OutgoingItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []database.OutgoingItem
	for _, item := range r.items {
		if item.State == database.OutgoingStateSent && item.SentAt != nil && !item.SentAt.Before(since) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeOutgoingRepo) TopByScore(from, to time.Time, limit int) ([]database.OutgoingItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []database.OutgoingItem
	for _, item := range r.items {
		if item.State != database.OutgoingStateSent || item.SentAt == nil {
			continue
		}
		if item.SentAt.Before(from) || item.SentAt.After(to) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NormalizedScore != out[j].NormalizedScore {
			return out[i].NormalizedScore > out[j].NormalizedScore
		}
		return out[i].SentAt.After(*out[j].SentAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeOutgoingRepo) CountByState() (map[database.OutgoingState]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[database.OutgoingState]int)
	for _, item := range r.items {
		out[item.State]++
	}
	return out, nil
}

func (r *fakeOutgoingRepo) UpdateText(id string, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return fmt.Errorf("outgoing item %s not found", id)
	}
	item.Text = text
	r.items[id] = item
	return nil
}

func (r *fakeOutgoingRepo) SetState(id string, from, to database.OutgoingState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok || item.State != from {
		return nil
	}
	item.State = to
	r.items[id] = item
	return nil
}

func (r *fakeOutgoingRepo) MarkSent(id string, nativeID int64, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok || item.State != database.OutgoingStateToSend {
		return nil
	}
	item.NativeID = &nativeID
	item.SentAt = &sentAt
	item.Error = ""
	item.State = database.OutgoingStateSent
	r.items[id] = item
	return nil
}

func (r *fakeOutgoingRepo) MarkSendError(id string, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok || item.State != database.OutgoingStateToSend {
		return nil
	}
	item.Error = errMsg
	item.State = database.OutgoingStateError
	r.items[id] = item
	return nil
}

func (r *fakeOutgoingRepo) UpdateEngagement(id string, engagement int, normalizedScore float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return fmt.Errorf("outgoing item %s not found", id)
	}
	item.Engagement = engagement
	item.NormalizedScore = normalizedScore
	r.items[id] = item
	return nil
}

func (r *fakeOutgoingRepo) get(id string) database.OutgoingItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id]
}

func (r *fakeOutgoingRepo) all() []database.OutgoingItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []database.OutgoingItem
	for _, item := range r.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageDttm.Before(out[j].MessageDttm) })
	return out
}

func (r *fakeOutgoingRepo) put(item database.OutgoingItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item
}

type fakeSettingsRepo struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{values: make(map[string]string)}
}

func (r *fakeSettingsRepo) GetSetting(key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[key], nil
}

func (r *fakeSettingsRepo) SetSetting(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

type fakeReader struct {
	mu    sync.Mutex
	items []source.RawItem
}

func (f *fakeReader) ListNewItems(_ context.Context, ch *channel.Config, since, until time.Time) ([]source.RawItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []source.RawItem
	for _, item := range f.items {
		if item.ChannelID == ch.ID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeReader) setItems(items []source.RawItem) {
	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Run(_ context.Context, url string) (string, error) {
	return f.text, f.err
}

type fakeNameResolver struct{}

func (fakeNameResolver) DisplayName(_ context.Context, url string) string {
	return url
}

type fakeOracle struct {
	mu            sync.Mutex
	summarizeFunc func(text string) (oracle.Summary, error)
	verifyFunc    func(a, b string) (bool, error)
	verifyCalls   int
}

func (f *fakeOracle) Summarize(_ context.Context, text string) (oracle.Summary, error) {
	f.mu.Lock()
	fn := f.summarizeFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(text)
	}
	return oracle.Summary{Summary: "summary: " + firstWords(text, 8), Headline: "headline: " + firstWords(text, 4)}, nil
}

func (f *fakeOracle) VerifyPair(_ context.Context, a, b string) (bool, error) {
	f.mu.Lock()
	f.verifyCalls++
	fn := f.verifyFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(a, b)
	}
	return false, nil
}

func (f *fakeOracle) BatchDeduplicate(_ context.Context, texts []string) ([][]int, error) {
	return nil, nil
}

func firstWords(text string, n int) string {
	words := make([]string, 0, n)
	for _, word := range splitWords(text) {
		words = append(words, word)
		if len(words) == n {
			break
		}
	}
	out := ""
	for i, word := range words {
		if i > 0 {
			out += " "
		}
		out += word
	}
	return out
}

func splitWords(text string) []string {
	var words []string
	current := ""
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			if current != "" {
				words = append(words, current)
				current = ""
			}
			continue
		}
		current += string(r)
	}
	if current != "" {
		words = append(words, current)
	}
	return words
}

type fakeTransport struct {
	mu          sync.Mutex
	nextID      int64
	inFlight    int
	maxInFlight int
	delay       time.Duration
	createErr   error
	creates     int
	edits       int
	digests     int
	reactions   map[int64]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nextID: 1, reactions: make(map[int64]int)}
}

func (f *fakeTransport) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
}

func (f *fakeTransport) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeTransport) Create(_ context.Context, text string) (int64, error) {
	f.enter()
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	id := f.nextID
	f.nextID++
	f.creates++
	return id, nil
}

func (f *fakeTransport) Edit(_ context.Context, nativeID int64, text string) error {
	f.enter()
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits++
	return nil
}

func (f *fakeTransport) SendDigest(_ context.Context, text string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.digests++
	return id, nil
}

func (f *fakeTransport) CollectReactions(_ context.Context) (map[int64]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]int, len(f.reactions))
	for k, v := range f.reactions {
		out[k] = v
	}
	return out, nil
}
