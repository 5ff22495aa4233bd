// internal/runtime/googleapi.go adapts *gmail.Service to our small interface
package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	gc "github.com/joshsymonds/unclutter/internal/gmail"
	"github.com/joshsymonds/unclutter/internal/mime"
)

const user = "me"

type googleClient struct{ svc *gmail.Service }

// NewGoogleAPIClient wraps an authenticated Gmail service.
func NewGoogleAPIClient(svc *gmail.Service) gc.Client { return &googleClient{svc} }

func (g *googleClient) List(ctx context.Context, q gc.Query, pageToken string, pageSize int) (gc.ListPage, error) {
	call := g.svc.Users.Messages.List(user).Q(q.Raw).MaxResults(int64(pageSize))
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return gc.ListPage{}, fmt.Errorf("list messages: %w", err)
	}
	page := gc.ListPage{NextPageToken: res.NextPageToken}
	for _, m := range res.Messages {
		page.IDs = append(page.IDs, gc.MessageID(m.Id))
	}
	return page, nil
}

func (g *googleClient) GetMessage(ctx context.Context, id gc.MessageID) (gc.Message, error) {
	msg, err := g.svc.Users.Messages.Get(user, string(id)).Format("full").Context(ctx).Do()
	if err != nil {
		return gc.Message{}, fmt.Errorf("get message %s: %w", id, err)
	}
	return toMessage(msg), nil
}

func (g *googleClient) BatchModify(ctx context.Context, ids []gc.MessageID, ops gc.ModifyOps) error {
	req := &gmail.BatchModifyMessagesRequest{Ids: toStrings(ids)}
	if len(ops.AddLabels) > 0 {
		req.AddLabelIds = toStringsL(ops.AddLabels)
	}
	if rm := ops.Removals(); len(rm) > 0 {
		req.RemoveLabelIds = toStringsL(rm)
	}
	if err := g.svc.Users.Messages.BatchModify(user, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("batch modify %d messages: %w", len(ids), err)
	}
	return nil
}

func (g *googleClient) ListLabels(ctx context.Context) (map[string]gc.LabelID, map[gc.LabelID]string, error) {
	lr, err := g.svc.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("list labels: %w", err)
	}
	byName := map[string]gc.LabelID{}
	byID := map[gc.LabelID]string{}
	for _, l := range lr.Labels {
		byName[l.Name] = gc.LabelID(l.Id)
		byID[gc.LabelID(l.Id)] = l.Name
	}
	return byName, byID, nil
}

func (g *googleClient) EnsureLabel(ctx context.Context, name string) (gc.LabelID, error) {
	byName, _, err := g.ListLabels(ctx)
	if err != nil {
		return "", err
	}
	if id, ok := byName[name]; ok {
		return id, nil
	}
	created, err := g.svc.Users.Labels.Create(user, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	return gc.LabelID(created.Id), nil
}

func toMessage(msg *gmail.Message) gc.Message {
	out := gc.Message{
		ID:       gc.MessageID(msg.Id),
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		LabelIDs: toLabelIDs(msg.LabelIds),
		Headers:  gc.Headers{},
	}
	if msg.InternalDate > 0 {
		out.InternalDate = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			out.Headers[h.Name] = h.Value
		}
		out.Payload = toPart(msg.Payload, 0)
	}
	return out
}

// toPart copies the provider tree. Body data stays base64url; the transfer
// encoding header tells the decoder whether quoted-printable follows.
func toPart(p *gmail.MessagePart, depth int) mime.Part {
	part := mime.Part{MimeType: p.MimeType}
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, "Content-Transfer-Encoding") {
			part.Encoding = strings.ToLower(strings.TrimSpace(h.Value))
		}
	}
	if p.Body != nil {
		part.Payload = p.Body.Data
	}
	if depth >= mime.MaxDepth {
		return part
	}
	for _, child := range p.Parts {
		if child != nil {
			part.Parts = append(part.Parts, toPart(child, depth+1))
		}
	}
	return part
}

func toStrings(ids []gc.MessageID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func toStringsL(ids []gc.LabelID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func toLabelIDs(ids []string) []gc.LabelID {
	out := make([]gc.LabelID, len(ids))
	for i, id := range ids {
		out[i] = gc.LabelID(id)
	}
	return out
}
