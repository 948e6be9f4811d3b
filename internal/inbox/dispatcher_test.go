package inbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Chloe-lh/Social-Gold/internal/activity"
	"github.com/Chloe-lh/Social-Gold/internal/model"
	"github.com/Chloe-lh/Social-Gold/internal/store"
)

const site = "https://node1.com"

// mockStore implements the slice of store.Store the dispatcher touches;
// anything else panics via the embedded nil interface.
type mockStore struct {
	store.Store
	mu        sync.Mutex
	authors   map[string]*model.Author
	nodes     map[string]*model.Node
	entries   map[string]*model.Entry
	comments  map[string]*model.Comment
	followers map[string][]*model.Author
	friends   map[string][]*model.Author
	delivered map[string][]*model.Author
	inbox     []*model.InboxItem
}

func newMockStore() *mockStore {
	return &mockStore{
		authors:   map[string]*model.Author{},
		nodes:     map[string]*model.Node{},
		entries:   map[string]*model.Entry{},
		comments:  map[string]*model.Comment{},
		followers: map[string][]*model.Author{},
		friends:   map[string][]*model.Author{},
		delivered: map[string][]*model.Author{},
	}
}

func (m *mockStore) GetAuthor(_ context.Context, id string) (*model.Author, error) {
	if a, ok := m.authors[id]; ok {
		return a, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) GetNode(_ context.Context, id string) (*model.Node, error) {
	if n, ok := m.nodes[id]; ok {
		return n, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) GetEntry(_ context.Context, id string) (*model.Entry, error) {
	if e, ok := m.entries[id]; ok {
		return e, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) GetComment(_ context.Context, id string) (*model.Comment, error) {
	if c, ok := m.comments[id]; ok {
		return c, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) ListFollowers(_ context.Context, object string) ([]*model.Author, error) {
	return m.followers[object], nil
}

func (m *mockStore) ListFriends(_ context.Context, author string) ([]*model.Author, error) {
	return m.friends[author], nil
}

func (m *mockStore) ListDeliveredAuthors(_ context.Context, object string) ([]*model.Author, error) {
	return m.delivered[object], nil
}

func (m *mockStore) AddInboxItem(_ context.Context, it *model.InboxItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = append(m.inbox, it)
	return nil
}

func (m *mockStore) inboxOwners() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.inbox))
	for i, it := range m.inbox {
		out[i] = it.Owner
	}
	return out
}

func author(id string) *model.Author {
	return &model.Author{ID: id, Username: id, Host: site}
}

type push struct {
	path string
	user string
	pass string
	typ  string
}

// remoteNode is a peer that records every inbox push it receives.
type remoteNode struct {
	mu     sync.Mutex
	pushes []push
	srv    *httptest.Server
}

func newRemoteNode(t *testing.T) *remoteNode {
	t.Helper()
	rn := &remoteNode{}
	rn.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		var act activity.Activity
		json.NewDecoder(r.Body).Decode(&act)
		rn.mu.Lock()
		rn.pushes = append(rn.pushes, push{path: r.URL.Path, user: user, pass: pass, typ: act.Type})
		rn.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(rn.srv.Close)
	return rn
}

func (rn *remoteNode) received() []push {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	return append([]push(nil), rn.pushes...)
}

func newTestDispatcher(ms *mockStore) *Dispatcher {
	return NewDispatcher(ms, site, 1, 2*time.Second)
}

func TestDispatchPublicEntry(t *testing.T) {
	ms := newMockStore()
	rn := newRemoteNode(t)

	alice := author(site + "/api/authors/alice")
	local := author(site + "/api/authors/bob")
	remote := &model.Author{ID: rn.srv.URL + "/api/authors/carol", Host: rn.srv.URL}
	ms.followers[alice.ID] = []*model.Author{local, remote}
	ms.nodes[rn.srv.URL] = &model.Node{
		ID: rn.srv.URL, AuthUser: "node1", AuthPass: "pw", IsActive: true,
	}

	entry := &model.Entry{
		ID: alice.ID + "/posts/1", Author: alice.ID,
		Visibility: model.VisibilityPublic, Published: time.Now(),
	}
	act, err := activity.CreateEntry(alice, entry)
	if err != nil {
		t.Fatal(err)
	}

	d := newTestDispatcher(ms)
	if err := d.Dispatch(context.Background(), alice, act); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	d.Wait()

	owners := ms.inboxOwners()
	if len(owners) != 1 || owners[0] != local.ID {
		t.Errorf("local inbox owners = %v, want just bob", owners)
	}
	got := rn.received()
	if len(got) != 1 {
		t.Fatalf("remote pushes = %d, want 1", len(got))
	}
	if got[0].path != "/api/authors/carol/inbox/" {
		t.Errorf("push path = %q", got[0].path)
	}
	if got[0].user != "node1" || got[0].pass != "pw" {
		t.Errorf("push auth = %s:%s, want the node's outbound credentials", got[0].user, got[0].pass)
	}
	if got[0].typ != activity.TypeCreate {
		t.Errorf("push type = %q", got[0].typ)
	}

	item := ms.inbox[0]
	if item.ObjectID != entry.ID {
		t.Errorf("inbox object id = %q, want %q", item.ObjectID, entry.ID)
	}
	if item.ID == "" {
		t.Error("inbox item id not minted")
	}
}

func TestDispatchFriendsEntry(t *testing.T) {
	ms := newMockStore()
	alice := author(site + "/api/authors/alice")
	follower := author(site + "/api/authors/bob")
	friend := author(site + "/api/authors/carol")
	ms.followers[alice.ID] = []*model.Author{follower, friend}
	ms.friends[alice.ID] = []*model.Author{friend}

	entry := &model.Entry{
		ID: alice.ID + "/posts/1", Author: alice.ID,
		Visibility: model.VisibilityFriends, Published: time.Now(),
	}
	act, err := activity.CreateEntry(alice, entry)
	if err != nil {
		t.Fatal(err)
	}

	d := newTestDispatcher(ms)
	if err := d.Dispatch(context.Background(), alice, act); err != nil {
		t.Fatal(err)
	}
	d.Wait()

	owners := ms.inboxOwners()
	if len(owners) != 1 || owners[0] != friend.ID {
		t.Errorf("owners = %v, want only the friend", owners)
	}
}

func TestDispatchUpdateRedelivers(t *testing.T) {
	ms := newMockStore()
	alice := author(site + "/api/authors/alice")
	exFollower := author(site + "/api/authors/gone")

	entry := &model.Entry{
		ID: alice.ID + "/posts/1", Author: alice.ID,
		Visibility: model.VisibilityFriends, Published: time.Now(),
	}
	// Nobody currently in the audience, but the create reached someone.
	ms.delivered[entry.ID] = []*model.Author{exFollower}

	act, err := activity.UpdateEntry(alice, entry)
	if err != nil {
		t.Fatal(err)
	}
	d := newTestDispatcher(ms)
	if err := d.Dispatch(context.Background(), alice, act); err != nil {
		t.Fatal(err)
	}
	d.Wait()

	owners := ms.inboxOwners()
	if len(owners) != 1 || owners[0] != exFollower.ID {
		t.Errorf("owners = %v, want the previously delivered author", owners)
	}
}

func TestDispatchSkipsInactiveAndUnknownNodes(t *testing.T) {
	ms := newMockStore()
	rn := newRemoteNode(t)

	alice := author(site + "/api/authors/alice")
	onInactive := &model.Author{ID: rn.srv.URL + "/api/authors/x", Host: rn.srv.URL}
	onUnknown := &model.Author{ID: "https://stranger.com/api/authors/y", Host: "https://stranger.com"}
	ms.followers[alice.ID] = []*model.Author{onInactive, onUnknown}
	ms.nodes[rn.srv.URL] = &model.Node{ID: rn.srv.URL, IsActive: false}

	entry := &model.Entry{
		ID: alice.ID + "/posts/1", Author: alice.ID,
		Visibility: model.VisibilityPublic, Published: time.Now(),
	}
	act, err := activity.CreateEntry(alice, entry)
	if err != nil {
		t.Fatal(err)
	}
	d := newTestDispatcher(ms)
	if err := d.Dispatch(context.Background(), alice, act); err != nil {
		t.Fatal(err)
	}
	d.Wait()

	if got := rn.received(); len(got) != 0 {
		t.Errorf("inactive node still got %d pushes", len(got))
	}
	if owners := ms.inboxOwners(); len(owners) != 0 {
		t.Errorf("unexpected local deliveries: %v", owners)
	}
}

func TestDispatchFollowReachesTargetOnly(t *testing.T) {
	ms := newMockStore()
	alice := author(site + "/api/authors/alice")
	bob := author(site + "/api/authors/bob")
	ms.authors[bob.ID] = bob
	// alice has followers who must not hear about her follow request.
	ms.followers[alice.ID] = []*model.Author{author(site + "/api/authors/other")}

	f := &model.Follow{
		ID: alice.ID + "/follow/1", Actor: alice.ID, Object: bob.ID,
		State: model.FollowRequested, Published: time.Now(),
	}
	act, err := activity.Follow(alice, f)
	if err != nil {
		t.Fatal(err)
	}
	d := newTestDispatcher(ms)
	if err := d.Dispatch(context.Background(), alice, act); err != nil {
		t.Fatal(err)
	}
	d.Wait()

	owners := ms.inboxOwners()
	if len(owners) != 1 || owners[0] != bob.ID {
		t.Errorf("owners = %v, want only the target", owners)
	}
}

func TestDispatchAcceptReachesRequester(t *testing.T) {
	ms := newMockStore()
	alice := author(site + "/api/authors/alice")
	bob := author(site + "/api/authors/bob")
	ms.authors[bob.ID] = bob

	f := &model.Follow{
		ID: bob.ID + "/follow/1", Actor: bob.ID, Object: alice.ID,
		State: model.FollowAccepted, Published: time.Now(),
	}
	env, err := activity.FollowEnvelope(f)
	if err != nil {
		t.Fatal(err)
	}
	act, err := activity.AcceptFollow(alice, env)
	if err != nil {
		t.Fatal(err)
	}

	d := newTestDispatcher(ms)
	if err := d.Dispatch(context.Background(), alice, act); err != nil {
		t.Fatal(err)
	}
	d.Wait()

	owners := ms.inboxOwners()
	if len(owners) != 1 || owners[0] != bob.ID {
		t.Errorf("owners = %v, want the original requester", owners)
	}
}

func TestDispatchCommentReachesAuthorAndAudience(t *testing.T) {
	ms := newMockStore()
	alice := author(site + "/api/authors/alice")
	bob := author(site + "/api/authors/bob")
	follower := author(site + "/api/authors/carol")
	ms.authors[alice.ID] = alice
	ms.followers[alice.ID] = []*model.Author{follower, bob}

	entry := &model.Entry{
		ID: alice.ID + "/posts/1", Author: alice.ID,
		Visibility: model.VisibilityPublic, Published: time.Now(),
	}
	ms.entries[entry.ID] = entry

	c := &model.Comment{
		ID: bob.ID + "/commented/1", Entry: entry.ID, Author: bob.ID,
		Content: "nice", ContentType: model.ContentTypeMarkdown, Published: time.Now(),
	}
	act, err := activity.CommentOnEntry(bob, c)
	if err != nil {
		t.Fatal(err)
	}

	d := newTestDispatcher(ms)
	if err := d.Dispatch(context.Background(), bob, act); err != nil {
		t.Fatal(err)
	}
	d.Wait()

	owners := ms.inboxOwners()
	want := map[string]bool{alice.ID: true, follower.ID: true}
	if len(owners) != 2 {
		t.Fatalf("owners = %v, want entry author and follower, not the commenter", owners)
	}
	for _, o := range owners {
		if !want[o] {
			t.Errorf("unexpected recipient %s", o)
		}
	}
}

func TestDispatchLikeOnComment(t *testing.T) {
	ms := newMockStore()
	alice := author(site + "/api/authors/alice")
	bob := author(site + "/api/authors/bob")
	ms.authors[bob.ID] = bob
	ms.authors[alice.ID] = alice

	entry := &model.Entry{
		ID: alice.ID + "/posts/1", Author: alice.ID,
		Visibility: model.VisibilityFriends, Published: time.Now(),
	}
	ms.entries[entry.ID] = entry
	c := &model.Comment{
		ID: bob.ID + "/commented/1", Entry: entry.ID, Author: bob.ID,
		Published: time.Now(),
	}
	ms.comments[c.ID] = c

	l := &model.Like{
		ID: alice.ID + "/likes/1", Author: alice.ID, Object: c.ID,
		Published: time.Now(),
	}
	act, err := activity.LikeObject(alice, l)
	if err != nil {
		t.Fatal(err)
	}

	d := newTestDispatcher(ms)
	if err := d.Dispatch(context.Background(), alice, act); err != nil {
		t.Fatal(err)
	}
	d.Wait()

	owners := ms.inboxOwners()
	if len(owners) != 1 || owners[0] != bob.ID {
		t.Errorf("owners = %v, want the comment's author", owners)
	}
}
