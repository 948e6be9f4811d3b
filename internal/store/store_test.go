package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *SQL {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "golden.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedAuthor(t *testing.T, s *SQL, host, name string) *model.Author {
	t.Helper()
	a := &model.Author{
		ID:           host + "/api/authors/" + name,
		Username:     name,
		PasswordHash: "$2a$10$" + name,
		DisplayName:  name,
		Host:         host,
		IsApproved:   true,
		Created:      base,
	}
	if err := s.CreateAuthor(context.Background(), a); err != nil {
		t.Fatalf("CreateAuthor(%s): %v", name, err)
	}
	return a
}

func seedEntry(t *testing.T, s *SQL, author *model.Author, name, visibility string, at time.Time) *model.Entry {
	t.Helper()
	e := &model.Entry{
		ID:          author.ID + "/posts/" + name,
		Author:      author.ID,
		Title:       name,
		Content:     "content of " + name,
		ContentType: model.ContentTypePlain,
		Visibility:  visibility,
		Published:   at,
	}
	if err := s.CreateEntry(context.Background(), e); err != nil {
		t.Fatalf("CreateEntry(%s): %v", name, err)
	}
	return e
}

func accept(t *testing.T, s *SQL, actor, object *model.Author) {
	t.Helper()
	ctx := context.Background()
	f := &model.Follow{
		ID:        actor.ID + "/follow/" + object.Username,
		Actor:     actor.ID,
		Object:    object.ID,
		State:     model.FollowRequested,
		Published: base,
	}
	if _, err := s.CreateFollow(ctx, f); err != nil {
		t.Fatalf("CreateFollow: %v", err)
	}
	if err := s.SetFollowState(ctx, actor.ID, object.ID, model.FollowAccepted); err != nil {
		t.Fatalf("SetFollowState: %v", err)
	}
}

func TestAuthorRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := seedAuthor(t, s, "https://node1.com", "alice")

	got, err := s.GetAuthor(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAuthor: %v", err)
	}
	if got.Username != "alice" || got.Host != "https://node1.com" || !got.IsApproved {
		t.Errorf("got %+v", got)
	}
	if !got.Created.Equal(base) {
		t.Errorf("created = %v, want %v", got.Created, base)
	}

	got.Bio = "updated"
	if err := s.UpdateAuthor(ctx, got); err != nil {
		t.Fatalf("UpdateAuthor: %v", err)
	}
	again, err := s.GetAuthor(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Bio != "updated" {
		t.Errorf("bio = %q, want updated", again.Bio)
	}

	if _, err := s.GetAuthor(ctx, "https://node1.com/api/authors/nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown author: err = %v, want ErrNotFound", err)
	}
}

func TestGetAuthorByUsernameSkipsMirrors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedAuthor(t, s, "https://node1.com", "alice")

	// A mirrored remote author with the same username must not shadow
	// the local login.
	mirror := &model.Author{
		ID:       "https://node2.com/api/authors/alice",
		Username: "alice",
		Host:     "https://node2.com",
		Created:  base,
	}
	if err := s.UpsertRemoteAuthor(ctx, mirror); err != nil {
		t.Fatalf("UpsertRemoteAuthor: %v", err)
	}

	got, err := s.GetAuthorByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAuthorByUsername: %v", err)
	}
	if got.Host != "https://node1.com" {
		t.Errorf("resolved host = %q, want the local author", got.Host)
	}
}

func TestUpsertRemoteAuthorRefreshes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mirror := &model.Author{
		ID:          "https://node2.com/api/authors/bob",
		Username:    "bob",
		DisplayName: "Bob",
		Host:        "https://node2.com",
		IsApproved:  true,
		Created:     base,
	}
	for _, name := range []string{"Bob", "Bobby"} {
		mirror.DisplayName = name
		if err := s.UpsertRemoteAuthor(ctx, mirror); err != nil {
			t.Fatalf("UpsertRemoteAuthor: %v", err)
		}
	}
	got, err := s.GetAuthor(ctx, mirror.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.DisplayName != "Bobby" {
		t.Errorf("display name = %q, want Bobby", got.DisplayName)
	}
	if got.PasswordHash != "" {
		t.Errorf("mirror grew a password hash: %q", got.PasswordHash)
	}
}

func TestListAuthors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedAuthor(t, s, "https://node1.com", "carol")
	seedAuthor(t, s, "https://node1.com", "alice")
	seedAuthor(t, s, "https://node1.com", "bob")
	// Remote mirrors and unapproved signups stay out of the directory.
	if err := s.UpsertRemoteAuthor(ctx, &model.Author{
		ID: "https://node2.com/api/authors/dave", Username: "dave",
		Host: "https://node2.com", Created: base,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAuthor(ctx, &model.Author{
		ID: "https://node1.com/api/authors/eve", Username: "eve",
		PasswordHash: "$2a$10$eve", Host: "https://node1.com", Created: base,
	}); err != nil {
		t.Fatal(err)
	}

	authors, total, err := s.ListAuthors(ctx, "https://node1.com", 2, 0)
	if err != nil {
		t.Fatalf("ListAuthors: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(authors) != 2 || authors[0].Username != "alice" || authors[1].Username != "bob" {
		t.Errorf("page = %v", usernames(authors))
	}

	authors, _, err = s.ListAuthors(ctx, "https://node1.com", 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(authors) != 1 || authors[0].Username != "carol" {
		t.Errorf("second page = %v", usernames(authors))
	}
}

func usernames(authors []*model.Author) []string {
	out := make([]string, len(authors))
	for i, a := range authors {
		out[i] = a.Username
	}
	return out
}

func TestNodeRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	n := &model.Node{
		ID:          "https://node2.com",
		Title:       "Node Two",
		AuthUser:    "outbound",
		AuthPass:    "secret",
		InboundUser: "inbound",
		InboundHash: "$2a$10$hash",
		IsActive:    true,
		Created:     base,
	}
	if err := s.UpsertNode(ctx, n); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}

	got, err := s.GetNode(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.AuthUser != "outbound" || !got.IsActive {
		t.Errorf("got %+v", got)
	}

	byUser, err := s.GetNodeByInboundUser(ctx, "inbound")
	if err != nil {
		t.Fatalf("GetNodeByInboundUser: %v", err)
	}
	if byUser.ID != n.ID {
		t.Errorf("resolved %q, want %q", byUser.ID, n.ID)
	}

	n.IsActive = false
	if err := s.UpsertNode(ctx, n); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetNodeByInboundUser(ctx, "inbound"); !errors.Is(err, ErrNotFound) {
		t.Errorf("inactive node resolved for auth: err = %v", err)
	}

	nodes, err := s.ListNodes(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 0 {
		t.Errorf("active nodes = %d, want 0", len(nodes))
	}
	nodes, err = s.ListNodes(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 {
		t.Errorf("all nodes = %d, want 1", len(nodes))
	}
}

func TestEntryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	alice := seedAuthor(t, s, "https://node1.com", "alice")
	e := seedEntry(t, s, alice, "first", model.VisibilityPublic, base)

	got, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Title != "first" || got.Updated != nil {
		t.Errorf("got %+v", got)
	}

	at := base.Add(time.Hour)
	got.Content = "edited"
	got.Updated = &at
	if err := s.UpdateEntry(ctx, got); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	again, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Content != "edited" || again.Updated == nil || !again.Updated.Equal(at) {
		t.Errorf("after update: %+v", again)
	}

	if err := s.UpdateEntry(ctx, &model.Entry{ID: alice.ID + "/posts/none"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("updating unknown entry: err = %v", err)
	}
}

func TestUpsertEntryRefreshes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := &model.Entry{
		ID:          "https://node2.com/api/authors/bob/posts/1",
		Author:      "https://node2.com/api/authors/bob",
		Title:       "hello",
		Content:     "v1",
		ContentType: model.ContentTypePlain,
		Visibility:  model.VisibilityPublic,
		Published:   base,
	}
	for _, content := range []string{"v1", "v2"} {
		e.Content = content
		if err := s.UpsertEntry(ctx, e); err != nil {
			t.Fatalf("UpsertEntry: %v", err)
		}
	}
	got, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "v2" {
		t.Errorf("content = %q, want v2", got.Content)
	}
}

func TestListEntriesByAuthorVisibility(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	host := "https://node1.com"
	alice := seedAuthor(t, s, host, "alice")
	follower := seedAuthor(t, s, host, "frank")
	friend := seedAuthor(t, s, host, "fiona")
	stranger := seedAuthor(t, s, host, "sam")

	accept(t, s, follower, alice)
	accept(t, s, friend, alice)
	accept(t, s, alice, friend)

	seedEntry(t, s, alice, "pub", model.VisibilityPublic, base)
	seedEntry(t, s, alice, "unl", model.VisibilityUnlisted, base.Add(time.Second))
	seedEntry(t, s, alice, "fri", model.VisibilityFriends, base.Add(2*time.Second))
	seedEntry(t, s, alice, "del", model.VisibilityDeleted, base.Add(3*time.Second))

	cases := []struct {
		name   string
		viewer string
		want   []string
	}{
		{"self", alice.ID, []string{"fri", "unl", "pub"}},
		{"follower", follower.ID, []string{"unl", "pub"}},
		{"friend", friend.ID, []string{"fri", "unl", "pub"}},
		{"stranger", stranger.ID, []string{"pub"}},
		{"node peer", "", []string{"unl", "pub"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, total, err := s.ListEntriesByAuthor(ctx, alice.ID, tc.viewer, 10, 0)
			if err != nil {
				t.Fatalf("ListEntriesByAuthor: %v", err)
			}
			if total != len(tc.want) {
				t.Errorf("total = %d, want %d", total, len(tc.want))
			}
			if got := titles(entries); !equal(got, tc.want) {
				t.Errorf("entries = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStreamEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	host := "https://node1.com"
	viewer := seedAuthor(t, s, host, "viewer")
	followed := seedAuthor(t, s, host, "followed")
	friend := seedAuthor(t, s, host, "friend")
	stranger := seedAuthor(t, s, host, "stranger")

	accept(t, s, viewer, followed)
	accept(t, s, viewer, friend)
	accept(t, s, friend, viewer)

	seedEntry(t, s, viewer, "own-unlisted", model.VisibilityUnlisted, base)
	seedEntry(t, s, stranger, "their-public", model.VisibilityPublic, base.Add(time.Second))
	seedEntry(t, s, followed, "followed-unlisted", model.VisibilityUnlisted, base.Add(2*time.Second))
	seedEntry(t, s, friend, "friend-friends", model.VisibilityFriends, base.Add(3*time.Second))
	seedEntry(t, s, stranger, "hidden-unlisted", model.VisibilityUnlisted, base.Add(4*time.Second))
	seedEntry(t, s, followed, "hidden-friends", model.VisibilityFriends, base.Add(5*time.Second))

	entries, err := s.StreamEntries(ctx, viewer.ID, 10, 0)
	if err != nil {
		t.Fatalf("StreamEntries: %v", err)
	}
	want := []string{"friend-friends", "followed-unlisted", "their-public", "own-unlisted"}
	if got := titles(entries); !equal(got, want) {
		t.Errorf("stream = %v, want %v", got, want)
	}
}

func titles(entries []*model.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCommentsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	alice := seedAuthor(t, s, "https://node1.com", "alice")
	entry := seedEntry(t, s, alice, "post", model.VisibilityPublic, base)

	for i, name := range []string{"one", "two", "three"} {
		c := &model.Comment{
			ID:          alice.ID + "/commented/" + name,
			Entry:       entry.ID,
			Author:      alice.ID,
			Content:     name,
			ContentType: model.ContentTypeMarkdown,
			Published:   base.Add(time.Duration(i) * time.Second),
		}
		created, err := s.CreateComment(ctx, c)
		if err != nil {
			t.Fatalf("CreateComment(%s): %v", name, err)
		}
		if !created {
			t.Errorf("CreateComment(%s) reported existing", name)
		}
	}
	// Redelivery of an existing comment is a no-op, not an error.
	created, err := s.CreateComment(ctx, &model.Comment{
		ID: alice.ID + "/commented/one", Entry: entry.ID, Author: alice.ID,
		Content: "dup", ContentType: model.ContentTypeMarkdown, Published: base,
	})
	if err != nil {
		t.Fatalf("redelivered comment: %v", err)
	}
	if created {
		t.Error("redelivered comment reported as created")
	}

	comments, total, err := s.ListCommentsByEntry(ctx, entry.ID, 2, 0)
	if err != nil {
		t.Fatalf("ListCommentsByEntry: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(comments) != 2 || comments[0].Content != "three" || comments[1].Content != "two" {
		t.Errorf("page = %+v", comments)
	}

	byAuthor, total, err := s.ListCommentsByAuthor(ctx, alice.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListCommentsByAuthor: %v", err)
	}
	if total != 3 || len(byAuthor) != 3 {
		t.Errorf("by author: %d items, total %d", len(byAuthor), total)
	}

	got, err := s.GetComment(ctx, alice.ID+"/commented/one")
	if err != nil {
		t.Fatalf("GetComment: %v", err)
	}
	if got.Content != "one" {
		t.Errorf("content = %q, want the original, not the redelivered dup", got.Content)
	}
}

func TestLikeIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	alice := seedAuthor(t, s, "https://node1.com", "alice")
	entry := seedEntry(t, s, alice, "post", model.VisibilityPublic, base)

	l := &model.Like{
		ID:        alice.ID + "/likes/1",
		Author:    alice.ID,
		Object:    entry.ID,
		Published: base,
	}
	created, err := s.CreateLike(ctx, l)
	if err != nil {
		t.Fatalf("CreateLike: %v", err)
	}
	if !created {
		t.Error("first like reported as existing")
	}

	dup := &model.Like{ID: alice.ID + "/likes/2", Author: alice.ID, Object: entry.ID, Published: base}
	created, err = s.CreateLike(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate CreateLike: %v", err)
	}
	if created {
		t.Error("duplicate like reported as created")
	}

	byPair, err := s.GetLikeByPair(ctx, alice.ID, entry.ID)
	if err != nil {
		t.Fatalf("GetLikeByPair: %v", err)
	}
	if byPair.ID != l.ID {
		t.Errorf("pair resolved %q, want the original %q", byPair.ID, l.ID)
	}

	likes, total, err := s.ListLikesByObject(ctx, entry.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListLikesByObject: %v", err)
	}
	if total != 1 || len(likes) != 1 {
		t.Errorf("likes on entry: %d items, total %d", len(likes), total)
	}

	byAuthor, total, err := s.ListLikesByAuthor(ctx, alice.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListLikesByAuthor: %v", err)
	}
	if total != 1 || len(byAuthor) != 1 {
		t.Errorf("likes by author: %d items, total %d", len(byAuthor), total)
	}
}

func TestFollowLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	host := "https://node1.com"
	alice := seedAuthor(t, s, host, "alice")
	bob := seedAuthor(t, s, host, "bob")

	f := &model.Follow{
		ID:        bob.ID + "/follow/1",
		Actor:     bob.ID,
		Object:    alice.ID,
		State:     model.FollowRequested,
		Published: base,
	}
	created, err := s.CreateFollow(ctx, f)
	if err != nil {
		t.Fatalf("CreateFollow: %v", err)
	}
	if !created {
		t.Error("first follow reported as existing")
	}
	created, err = s.CreateFollow(ctx, &model.Follow{
		ID: bob.ID + "/follow/2", Actor: bob.ID, Object: alice.ID,
		State: model.FollowRequested, Published: base,
	})
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("redelivered follow reported as created")
	}

	// Not yet accepted: no follower relationship.
	followers, err := s.ListFollowers(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(followers) != 0 {
		t.Errorf("followers before accept = %d, want 0", len(followers))
	}

	if err := s.SetFollowState(ctx, bob.ID, alice.ID, model.FollowAccepted); err != nil {
		t.Fatalf("SetFollowState: %v", err)
	}
	followers, err = s.ListFollowers(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(followers) != 1 || followers[0].ID != bob.ID {
		t.Errorf("followers = %v", usernames(followers))
	}
	following, err := s.ListFollowing(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(following) != 1 || following[0].ID != alice.ID {
		t.Errorf("following = %v", usernames(following))
	}

	// One direction only: not friends yet.
	friends, err := s.ListFriends(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(friends) != 0 {
		t.Errorf("friends = %v, want none before the follow-back", usernames(friends))
	}
	accept(t, s, alice, bob)
	friends, err = s.ListFriends(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(friends) != 1 || friends[0].ID != bob.ID {
		t.Errorf("friends = %v, want bob", usernames(friends))
	}

	if err := s.DeleteFollow(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("DeleteFollow: %v", err)
	}
	if _, err := s.GetFollowByPair(ctx, bob.ID, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteFollow(ctx, bob.ID, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}
}

func TestImages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	alice := seedAuthor(t, s, "https://node1.com", "alice")
	entry := seedEntry(t, s, alice, "post", model.VisibilityPublic, base)

	first := &model.EntryImage{Entry: entry.ID, Name: "a.png", Ref: "blobs/a", Order: 1, UploadedAt: base}
	second := &model.EntryImage{Entry: entry.ID, Name: "b.png", Ref: "blobs/b", Order: 0, UploadedAt: base}
	for _, img := range []*model.EntryImage{first, second} {
		if err := s.AddImage(ctx, img); err != nil {
			t.Fatalf("AddImage(%s): %v", img.Name, err)
		}
		if img.ID == 0 {
			t.Errorf("AddImage(%s) left id zero", img.Name)
		}
	}

	got, err := s.GetImage(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if got.Name != "a.png" || got.Ref != "blobs/a" {
		t.Errorf("got %+v", got)
	}

	imgs, err := s.ListImagesByEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("ListImagesByEntry: %v", err)
	}
	if len(imgs) != 2 || imgs[0].Name != "b.png" {
		t.Errorf("order = %v", []string{imgs[0].Name, imgs[1].Name})
	}

	if err := s.DeleteImage(ctx, first.ID); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	if _, err := s.GetImage(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: err = %v, want ErrNotFound", err)
	}
}

func TestInbox(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	host := "https://node1.com"
	alice := seedAuthor(t, s, host, "alice")
	bob := seedAuthor(t, s, host, "bob")
	object := "https://node2.com/api/authors/carol/posts/1"

	items := []*model.InboxItem{
		{ID: "01A", Owner: alice.ID, ObjectID: object, Raw: []byte(`{"type":"entry"}`), Received: base},
		{ID: "01B", Owner: alice.ID, ObjectID: object, Raw: []byte(`{"type":"update"}`), Received: base.Add(time.Second)},
		{ID: "01C", Owner: bob.ID, ObjectID: object, Raw: []byte(`{"type":"entry"}`), Received: base},
	}
	for _, it := range items {
		if err := s.AddInboxItem(ctx, it); err != nil {
			t.Fatalf("AddInboxItem(%s): %v", it.ID, err)
		}
	}

	got, total, err := s.ListInbox(ctx, alice.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListInbox: %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Fatalf("inbox: %d items, total %d", len(got), total)
	}
	if got[0].ID != "01B" || got[1].ID != "01A" {
		t.Errorf("order = [%s %s], want newest first", got[0].ID, got[1].ID)
	}
	if string(got[0].Raw) != `{"type":"update"}` {
		t.Errorf("raw = %s", got[0].Raw)
	}

	delivered, err := s.ListDeliveredAuthors(ctx, object)
	if err != nil {
		t.Fatalf("ListDeliveredAuthors: %v", err)
	}
	if len(delivered) != 2 {
		t.Errorf("delivered = %v, want alice and bob once each", usernames(delivered))
	}
}
