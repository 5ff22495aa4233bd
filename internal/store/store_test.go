package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/unclutter/internal/email"
	"github.com/joshsymonds/unclutter/internal/groups"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "unclutter.db"))
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEmail(id string, received time.Time) email.Email {
	return email.Email{
		ID:         id,
		ThreadID:   "thread-1",
		Subject:    "Subject " + id,
		From:       "Alice <alice@example.com>",
		To:         []string{"me@example.com"},
		Cc:         []string{"bob@example.com", "carol@example.com"},
		ReceivedAt: received,
		Snippet:    "snippet",
		BodyPlain:  "body",
		BodyHTML:   "<p>body</p>",
		BodySource: email.SourceHTML,
		IsStarred:  true,
		LabelIDs:   []string{"INBOX", "UNREAD"},
	}
}

func TestSaveAndGetEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := sampleEmail("m1", fixedNow)
	require.NoError(t, s.SaveEmail(ctx, want))

	got, err := s.GetEmail(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = s.GetEmail(ctx, "missing")
	assert.ErrorIs(t, err, ErrEmailNotFound)
}

func TestSaveEmailPreservesLLMFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := sampleEmail("m1", fixedNow)
	require.NoError(t, s.SaveEmail(ctx, e))
	require.NoError(t, s.UpdateCategory(ctx, "m1", email.CategorySchool))
	require.NoError(t, s.UpdateSummary(ctx, "m1", "• short"))

	e.Subject = "Edited"
	e.IsRead = true
	require.NoError(t, s.SaveEmail(ctx, e))

	got, err := s.GetEmail(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Edited", got.Subject)
	assert.True(t, got.IsRead)
	assert.Equal(t, email.CategorySchool, got.Category)
	assert.Equal(t, "• short", got.Summary)

	count, err := s.CountEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSaveEmailDefaultsThreadID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := sampleEmail("solo", fixedNow)
	e.ThreadID = ""
	e.To, e.Cc, e.LabelIDs = nil, nil, nil
	require.NoError(t, s.SaveEmail(ctx, e))

	got, err := s.GetEmail(ctx, "solo")
	require.NoError(t, err)
	assert.Equal(t, "solo", got.ThreadID)
	assert.Nil(t, got.To)
	assert.Nil(t, got.LabelIDs)
}

func TestListEmails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"old", "mid", "new"} {
		e := sampleEmail(id, fixedNow.Add(time.Duration(i)*time.Hour))
		e.IsRead = id == "mid"
		require.NoError(t, s.SaveEmail(ctx, e))
	}
	require.NoError(t, s.UpdateCategory(ctx, "new", email.CategoryWork))

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"newest first", ListOptions{}, []string{"new", "mid", "old"}},
		{"limit", ListOptions{Limit: 2}, []string{"new", "mid"}},
		{"unread only", ListOptions{UnreadOnly: true}, []string{"new", "old"}},
		{"uncategorized", ListOptions{Uncategorized: true}, []string{"mid", "old"}},
		{"combined", ListOptions{UnreadOnly: true, Uncategorized: true}, []string{"old"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListEmails(ctx, tt.opts)
			require.NoError(t, err)
			var ids []string
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestListThreadOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEmail(ctx, sampleEmail("b", fixedNow.Add(time.Hour))))
	require.NoError(t, s.SaveEmail(ctx, sampleEmail("a", fixedNow)))
	other := sampleEmail("c", fixedNow)
	other.ThreadID = "thread-2"
	require.NoError(t, s.SaveEmail(ctx, other))

	got, err := s.ListThread(ctx, "thread-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestUpdateAndDeleteMissingEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.UpdateCategory(ctx, "nope", email.CategoryOther), ErrEmailNotFound)
	assert.ErrorIs(t, s.UpdateSummary(ctx, "nope", "x"), ErrEmailNotFound)
	assert.ErrorIs(t, s.DeleteEmail(ctx, "nope"), ErrEmailNotFound)

	require.NoError(t, s.SaveEmail(ctx, sampleEmail("m1", fixedNow)))
	require.NoError(t, s.DeleteEmail(ctx, "m1"))
	_, err := s.GetEmail(ctx, "m1")
	assert.ErrorIs(t, err, ErrEmailNotFound)
}

func TestCreateGroup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateGroup(ctx, groups.Group{
		Name:     "  Receipts ",
		Keywords: []string{"Receipt", "receipt ", "invoice"},
		Domains:  []string{"*@Shop.example.com"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "Receipts", first.Name)
	assert.Equal(t, []string{"receipt", "invoice"}, first.Keywords)
	assert.Equal(t, []string{"shop.example.com"}, first.Domains)
	assert.Equal(t, 1, first.SortOrder)
	assert.Equal(t, fixedNow, first.CreatedAt)

	second, err := s.CreateGroup(ctx, groups.Group{Name: "Work"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.SortOrder)

	pinned, err := s.CreateGroup(ctx, groups.Group{ID: "fixed", Name: "Pinned", SortOrder: 10})
	require.NoError(t, err)
	assert.Equal(t, "fixed", pinned.ID)
	assert.Equal(t, 10, pinned.SortOrder)

	got, err := s.GetGroup(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	_, err = s.CreateGroup(ctx, groups.Group{Name: "   "})
	assert.ErrorIs(t, err, groups.ErrInvalidGroup)
}

func TestListUpdateDeleteGroups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b, err := s.CreateGroup(ctx, groups.Group{Name: "B", SortOrder: 5})
	require.NoError(t, err)
	a, err := s.CreateGroup(ctx, groups.Group{Name: "A", SortOrder: 2})
	require.NoError(t, err)

	list, err := s.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{a.ID, b.ID}, []string{list[0].ID, list[1].ID})

	s.now = func() time.Time { return fixedNow.Add(time.Hour) }
	b.Senders = []string{"News@Example.com"}
	b.SortOrder = 1
	updated, err := s.UpdateGroup(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"news@example.com"}, updated.Senders)
	assert.Equal(t, fixedNow, updated.CreatedAt)
	assert.Equal(t, fixedNow.Add(time.Hour), updated.UpdatedAt)

	list, err = s.ListGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, list[0].ID)

	require.NoError(t, s.DeleteGroup(ctx, a.ID))
	assert.ErrorIs(t, s.DeleteGroup(ctx, a.ID), ErrGroupNotFound)
	_, err = s.UpdateGroup(ctx, groups.Group{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, ErrGroupNotFound)
	_, err = s.GetGroup(ctx, a.ID)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestDeleteGroupLeavesEmails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, groups.Group{Name: "Any", Keywords: []string{"body"}})
	require.NoError(t, err)
	require.NoError(t, s.SaveEmail(ctx, sampleEmail("m1", fixedNow)))
	require.NoError(t, s.DeleteGroup(ctx, g.ID))

	n, err := s.CountEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnsureDefaultGroups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.EnsureDefaultGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	list, err := s.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Promotions", "Updates", "Social"}, []string{list[0].Name, list[1].Name, list[2].Name})

	created, err = s.EnsureDefaultGroups(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestEnsureDefaultGroupsSkipsWhenUserHasGroups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateGroup(ctx, groups.Group{Name: "Mine"})
	require.NoError(t, err)
	created, err := s.EnsureDefaultGroups(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)

	list, err := s.ListGroups(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.SaveEmail(ctx, sampleEmail("m1", fixedNow)))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetEmail(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Subject m1", got.Subject)
}
