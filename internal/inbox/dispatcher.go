// Package inbox fans locally created activities out to their audience:
// inbox rows for local recipients, authenticated HTTP pushes for remote
// ones. Delivery is best effort; there is no retry and no ordering.
package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Chloe-lh/Social-Gold/internal/activity"
	"github.com/Chloe-lh/Social-Gold/internal/fqid"
	"github.com/Chloe-lh/Social-Gold/internal/model"
	"github.com/Chloe-lh/Social-Gold/internal/store"
)

type Dispatcher struct {
	store     store.Store
	siteURL   string
	client    *http.Client
	threshold int
	wg        sync.WaitGroup
}

// NewDispatcher sizes delivery workers so each handles at most
// threshold recipients; timeout bounds every remote push.
func NewDispatcher(st store.Store, siteURL string, threshold int, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		store:     st,
		siteURL:   siteURL,
		client:    &http.Client{Timeout: timeout},
		threshold: threshold,
	}
}

// Wait drains in-flight deliveries; call on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatch selects the audience for act and hands it to the delivery
// workers. It returns once recipients are resolved; pushes continue in
// the background.
func (d *Dispatcher) Dispatch(ctx context.Context, actor *model.Author, act *activity.Activity) error {
	recipients, err := d.recipients(ctx, act)
	if err != nil {
		return err
	}
	d.deliver(act, actor.ID, recipients)
	return nil
}

func (d *Dispatcher) recipients(ctx context.Context, act *activity.Activity) ([]*model.Author, error) {
	switch act.Type {
	case activity.TypeCreate:
		var e model.Entry
		if err := act.UnmarshalObject(&e); err != nil {
			return nil, err
		}
		return d.audience(ctx, e.Author, e.Visibility)

	case activity.TypeUpdate, activity.TypeDelete:
		var e model.Entry
		if err := act.UnmarshalObject(&e); err != nil {
			return nil, err
		}
		aud, err := d.audience(ctx, e.Author, e.Visibility)
		if err != nil {
			return nil, err
		}
		// Everyone who received the create hears about the change, even
		// after unfollowing or a visibility cut.
		delivered, err := d.store.ListDeliveredAuthors(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		return append(aud, delivered...), nil

	case activity.TypeComment:
		var c model.Comment
		if err := act.UnmarshalObject(&c); err != nil {
			return nil, err
		}
		return d.entryCircle(ctx, c.Entry)

	case activity.TypeLike:
		return d.likeRecipients(ctx, act.ObjectID())

	case activity.TypeFollow:
		target, err := d.resolveAuthor(ctx, act.ObjectID())
		if err != nil {
			return nil, err
		}
		return []*model.Author{target}, nil

	case activity.TypeAccept, activity.TypeReject, activity.TypeUndo:
		var follow activity.Activity
		if err := act.UnmarshalObject(&follow); err != nil {
			return nil, err
		}
		// The counterparty of the wrapped follow hears the outcome.
		other := follow.Actor
		if other == act.Actor {
			other = follow.ObjectID()
		}
		target, err := d.resolveAuthor(ctx, other)
		if err != nil {
			return nil, err
		}
		return []*model.Author{target}, nil
	}
	return nil, fmt.Errorf("no audience for activity type %q", act.Type)
}

// entryCircle is the entry's author plus whoever its visibility reaches.
func (d *Dispatcher) entryCircle(ctx context.Context, entryID string) ([]*model.Author, error) {
	e, err := d.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	author, err := d.resolveAuthor(ctx, e.Author)
	if err != nil {
		return nil, err
	}
	aud, err := d.audience(ctx, e.Author, e.Visibility)
	if err != nil {
		return nil, err
	}
	return append([]*model.Author{author}, aud...), nil
}

func (d *Dispatcher) likeRecipients(ctx context.Context, object string) ([]*model.Author, error) {
	if _, err := d.store.GetEntry(ctx, object); err == nil {
		return d.entryCircle(ctx, object)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	c, err := d.store.GetComment(ctx, object)
	if err != nil {
		return nil, fmt.Errorf("liked object %s: %w", object, err)
	}
	author, err := d.resolveAuthor(ctx, c.Author)
	if err != nil {
		return nil, err
	}
	circle, err := d.entryCircle(ctx, c.Entry)
	if errors.Is(err, store.ErrNotFound) {
		return []*model.Author{author}, nil
	}
	if err != nil {
		return nil, err
	}
	return append([]*model.Author{author}, circle...), nil
}

func (d *Dispatcher) audience(ctx context.Context, author, visibility string) ([]*model.Author, error) {
	switch visibility {
	case model.VisibilityPublic:
		followers, err := d.store.ListFollowers(ctx, author)
		if err != nil {
			return nil, err
		}
		friends, err := d.store.ListFriends(ctx, author)
		if err != nil {
			return nil, err
		}
		return append(followers, friends...), nil
	case model.VisibilityUnlisted:
		return d.store.ListFollowers(ctx, author)
	case model.VisibilityFriends:
		return d.store.ListFriends(ctx, author)
	}
	// DELETED reaches nobody beyond the already-delivered set.
	return nil, nil
}

// resolveAuthor prefers the stored row; an unknown remote FQID still
// gets a deliverable stub.
func (d *Dispatcher) resolveAuthor(ctx context.Context, id string) (*model.Author, error) {
	a, err := d.store.GetAuthor(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return &model.Author{ID: id, Host: fqid.HostBase(id)}, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (d *Dispatcher) deliver(act *activity.Activity, actorID string, recipients []*model.Author) {
	raw, err := json.Marshal(act)
	if err != nil {
		log.Printf("Failed to encode %s activity %s: %v", act.Type, act.ID, err)
		return
	}

	seen := map[string]bool{actorID: true}
	unique := recipients[:0]
	for _, r := range recipients {
		if r == nil || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		unique = append(unique, r)
	}

	for start := 0; start < len(unique); start += d.threshold {
		chunk := unique[start:min(start+d.threshold, len(unique))]
		d.wg.Add(1)
		go func(chunk []*model.Author) {
			defer d.wg.Done()
			for _, r := range chunk {
				d.push(act, raw, r)
			}
		}(chunk)
	}
}

func (d *Dispatcher) push(act *activity.Activity, raw []byte, recipient *model.Author) {
	ctx := context.Background()
	if fqid.IsLocal(recipient.ID, d.siteURL) {
		item := &model.InboxItem{
			ID:       ulid.Make().String(),
			Owner:    recipient.ID,
			ObjectID: act.ObjectID(),
			Raw:      raw,
			Received: time.Now().UTC(),
		}
		if err := d.store.AddInboxItem(ctx, item); err != nil {
			log.Printf("Failed to write inbox item for %s: %v", recipient.ID, err)
		}
		return
	}

	node, err := d.store.GetNode(ctx, fqid.HostBase(recipient.ID))
	if err != nil {
		log.Printf("Skipping %s: no node for host %s", recipient.ID, fqid.HostBase(recipient.ID))
		return
	}
	if !node.IsActive {
		return
	}

	req, err := http.NewRequest(http.MethodPost, recipient.ID+"/inbox/", bytes.NewReader(raw))
	if err != nil {
		log.Printf("Failed to build push to %s: %v", recipient.ID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(node.AuthUser, node.AuthPass)

	resp, err := d.client.Do(req)
	if err != nil {
		log.Printf("Failed to push %s to %s: %v", act.Type, recipient.ID, err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		log.Printf("Push of %s to %s returned %d", act.Type, recipient.ID, resp.StatusCode)
	}
}
